package store

import "time"

// User is a local login account. The access flags gate the live,
// series, and film page families.
type User struct {
	ID             int64
	Username       string
	HashedPassword string
	IsActive       bool
	IsAdmin        bool
	StreamsAccess  bool
	SeriesAccess   bool
	FilmsAccess    bool
	CreatedAt      time.Time
}

// AccountProfile is the provider account snapshot (singleton row).
type AccountProfile struct {
	Username             string
	Password             string
	Message              string
	Auth                 int
	Status               string
	ExpDate              string
	IsTrial              string
	ActiveCons           string
	CreatedAt            string
	MaxConnections       string
	AllowedOutputFormats string
	ServerURL            string
	ServerPort           string
	ServerHTTPSPort      string
	ServerProtocol       string
	ServerRTMPPort       string
	ServerTimezone       string
	ServerTimestampNow   int64
	ServerTimeNow        string
}

// Category is a row of one of the three category tables.
type Category struct {
	ID         int64
	CategoryID string
	Name       string
	ParentID   int
}

// LiveChannel is a live_channels row.
type LiveChannel struct {
	ID                int64
	Num               int
	Name              string
	StreamType        string
	StreamID          int
	StreamIcon        string
	EPGChannelID      string
	Added             string
	CategoryID        string
	CustomSID         string
	TVArchive         int
	DirectSource      string
	TVArchiveDuration int
}

// FilmStream is a film_streams row.
type FilmStream struct {
	ID                 int64
	Num                int
	Name               string
	StreamType         string
	StreamID           int
	StreamIcon         string
	Rating             string
	Rating5Based       float64
	Added              string
	CategoryID         string
	ContainerExtension string
	CustomSID          string
	DirectSource       string
}

// FilmDetail is a film_details row (one per VOD id).
type FilmDetail struct {
	ID                   int64
	StreamID             int
	Name                 string
	OName                string
	StreamIcon           string
	CoverBig             string
	MovieImage           string
	Plot                 string
	Cast                 string
	Director             string
	Genre                string
	ReleaseDate          string
	Rating               string
	Rating5Based         float64
	DurationSecs         int
	Duration             string
	YoutubeTrailer       string
	TMDBID               string
	KinopoiskURL         string
	EpisodeRunTime       string
	Actors               string
	Description          string
	Age                  string
	MPAARating           string
	RatingCountKinopoisk int
	Country              string
	BackdropPath         string
	Bitrate              int
	Video                string
	Audio                string
	ContainerExtension   string
}

// Series is a series row.
type Series struct {
	ID             int64
	SeriesID       int
	Name           string
	Cover          string
	Plot           string
	Cast           string
	Director       string
	Genre          string
	ReleaseDate    string
	LastModified   string
	Rating         string
	Rating5Based   float64
	BackdropPath   string
	YoutubeTrailer string
	EpisodeRunTime string
	CategoryID     string
}

// SeriesEpisode is a series_episodes row. EpisodeID is the provider's
// per-episode stream id, the one playback URLs are built from.
type SeriesEpisode struct {
	ID                 int64
	SeriesID           int
	Season             int
	EpisodeID          string
	EpisodeNum         int
	Title              string
	ContainerExtension string
	Plot               string
	Duration           string
	Rating             float64
	Info               string
}

// EpgListing is an epg_listings row. Title and Description stay
// base64-encoded exactly as the provider sent them.
type EpgListing struct {
	ID             int64
	EPGID          string
	Title          string
	Lang           string
	Start          string
	End            string
	Description    string
	ChannelID      string
	StartTimestamp int64
	StopTimestamp  int64
	NowPlaying     bool
	HasArchive     bool
	StreamID       int
}
