package xtream

import (
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Providers disagree on scalar shapes: ids and ports arrive as JSON
// numbers or strings, ratings as strings or floats, flags as bools or
// 0/1. The Flex types accept both forms and default to zero on
// anything else, matching the uniform field defaulting of the store.

// FlexInt decodes a JSON number or numeric string as an int.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = FlexInt(i)
		return nil
	}
	if fl, err := strconv.ParseFloat(s, 64); err == nil {
		*f = FlexInt(fl)
		return nil
	}
	*f = 0
	return nil
}

// FlexFloat decodes a JSON number or numeric string as a float64.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if fl, err := strconv.ParseFloat(s, 64); err == nil {
		*f = FlexFloat(fl)
		return nil
	}
	*f = 0
	return nil
}

// FlexString decodes a JSON string, number, or bool as its string form.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			*f = ""
			return nil
		}
		*f = FlexString(v)
		return nil
	}
	*f = FlexString(s)
	return nil
}

// FlexBool decodes a JSON bool, 0/1 number, or "0"/"1" string.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	switch s {
	case "", "null", "0", "false":
		*f = false
	default:
		*f = true
	}
	return nil
}

// StringList decodes a JSON array of strings, a bare string, or null.
// Some providers send backdrop_path as a single string.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null" || s == "":
		*l = nil
	case strings.HasPrefix(s, "["):
		var raw []FlexString
		if err := json.Unmarshal(b, &raw); err != nil {
			*l = nil
			return nil
		}
		out := make([]string, 0, len(raw))
		for _, v := range raw {
			if v != "" {
				out = append(out, string(v))
			}
		}
		*l = out
	default:
		var one FlexString
		if err := json.Unmarshal(b, &one); err != nil || one == "" {
			*l = nil
			return nil
		}
		*l = []string{string(one)}
	}
	return nil
}

// First returns the first entry or "".
func (l StringList) First() string {
	if len(l) == 0 {
		return ""
	}
	return l[0]
}

// Category is one entry of the get_*_categories actions.
type Category struct {
	CategoryID   FlexString `json:"category_id"`
	CategoryName string     `json:"category_name"`
	ParentID     FlexInt    `json:"parent_id"`
}

// LiveStream is one entry of get_live_streams.
type LiveStream struct {
	Num               FlexInt    `json:"num"`
	Name              string     `json:"name"`
	StreamType        string     `json:"stream_type"`
	StreamID          FlexInt    `json:"stream_id"`
	StreamIcon        string     `json:"stream_icon"`
	EPGChannelID      FlexString `json:"epg_channel_id"`
	Added             FlexString `json:"added"`
	CategoryID        FlexString `json:"category_id"`
	CustomSID         FlexString `json:"custom_sid"`
	TVArchive         FlexInt    `json:"tv_archive"`
	DirectSource      string     `json:"direct_source"`
	TVArchiveDuration FlexInt    `json:"tv_archive_duration"`
}

// FilmStream is one entry of get_vod_streams.
type FilmStream struct {
	Num                FlexInt    `json:"num"`
	Name               string     `json:"name"`
	StreamType         string     `json:"stream_type"`
	StreamID           FlexInt    `json:"stream_id"`
	StreamIcon         string     `json:"stream_icon"`
	Rating             FlexString `json:"rating"`
	Rating5Based       FlexFloat  `json:"rating_5based"`
	Added              FlexString `json:"added"`
	CategoryID         FlexString `json:"category_id"`
	ContainerExtension string     `json:"container_extension"`
	CustomSID          FlexString `json:"custom_sid"`
	DirectSource       string     `json:"direct_source"`
}

// Series is one entry of get_series and the info block of get_series_info.
type Series struct {
	Num            FlexInt    `json:"num"`
	Name           string     `json:"name"`
	SeriesID       FlexInt    `json:"series_id"`
	Cover          string     `json:"cover"`
	Plot           string     `json:"plot"`
	Cast           string     `json:"cast"`
	Director       string     `json:"director"`
	Genre          string     `json:"genre"`
	ReleaseDate    string     `json:"releaseDate"`
	LastModified   FlexString `json:"last_modified"`
	Rating         FlexString `json:"rating"`
	Rating5Based   FlexFloat  `json:"rating_5based"`
	BackdropPath   StringList `json:"backdrop_path"`
	YoutubeTrailer string     `json:"youtube_trailer"`
	EpisodeRunTime FlexString `json:"episode_run_time"`
	CategoryID     FlexString `json:"category_id"`
}

// Episode is one entry of a get_series_info season list. ID is the
// provider's per-episode stream id used in series playback URLs.
type Episode struct {
	ID                 FlexString      `json:"id"`
	EpisodeNum         FlexInt         `json:"episode_num"`
	Title              string          `json:"title"`
	ContainerExtension string          `json:"container_extension"`
	Season             FlexInt         `json:"season"`
	Plot               string          `json:"plot"`
	Duration           FlexString      `json:"duration"`
	Rating             FlexFloat       `json:"rating"`
	Info               json.RawMessage `json:"info"`
}

// SeriesInfo is the get_series_info response: the series info block
// plus a flat map of season-number strings to episode lists.
type SeriesInfo struct {
	Info     Series               `json:"info"`
	Episodes map[string][]Episode `json:"episodes"`
}

// FilmInfo is the info block of get_vod_info.
type FilmInfo struct {
	Name                 string          `json:"name"`
	OName                string          `json:"o_name"`
	MovieImage           string          `json:"movie_image"`
	CoverBig             string          `json:"cover_big"`
	Plot                 string          `json:"plot"`
	Cast                 string          `json:"cast"`
	Director             string          `json:"director"`
	Genre                string          `json:"genre"`
	ReleaseDate          string          `json:"releasedate"`
	Rating               FlexString      `json:"rating"`
	Rating5Based         FlexFloat       `json:"rating_5based"`
	DurationSecs         FlexInt         `json:"duration_secs"`
	Duration             string          `json:"duration"`
	YoutubeTrailer       string          `json:"youtube_trailer"`
	TMDBID               FlexString      `json:"tmdb_id"`
	KinopoiskURL         string          `json:"kinopoisk_url"`
	EpisodeRunTime       FlexString      `json:"episode_run_time"`
	Actors               string          `json:"actors"`
	Description          string          `json:"description"`
	Age                  FlexString      `json:"age"`
	MPAARating           FlexString      `json:"mpaa_rating"`
	RatingCountKinopoisk FlexInt         `json:"rating_count_kinopoisk"`
	Country              string          `json:"country"`
	BackdropPath         StringList      `json:"backdrop_path"`
	Bitrate              FlexInt         `json:"bitrate"`
	Video                json.RawMessage `json:"video"`
	Audio                json.RawMessage `json:"audio"`
}

// MovieData is the movie_data block of get_vod_info.
type MovieData struct {
	StreamID           FlexInt    `json:"stream_id"`
	Name               string     `json:"name"`
	Added              FlexString `json:"added"`
	CategoryID         FlexString `json:"category_id"`
	ContainerExtension string     `json:"container_extension"`
	CustomSID          FlexString `json:"custom_sid"`
	DirectSource       string     `json:"direct_source"`
}

// VODInfo is the get_vod_info response.
type VODInfo struct {
	Info      FilmInfo  `json:"info"`
	MovieData MovieData `json:"movie_data"`
}

// EPGListing is one entry of get_simple_data_table. Title and
// Description arrive base64-encoded and are kept that way here.
type EPGListing struct {
	ID             FlexString `json:"id"`
	EPGID          FlexString `json:"epg_id"`
	Title          string     `json:"title"`
	Lang           string     `json:"lang"`
	Start          string     `json:"start"`
	End            string     `json:"end"`
	Description    string     `json:"description"`
	ChannelID      string     `json:"channel_id"`
	StartTimestamp FlexInt    `json:"start_timestamp"`
	StopTimestamp  FlexInt    `json:"stop_timestamp"`
	NowPlaying     FlexBool   `json:"now_playing"`
	HasArchive     FlexBool   `json:"has_archive"`
}

// UserInfo is the user_info block of the bare player_api call.
type UserInfo struct {
	Username             string     `json:"username"`
	Password             string     `json:"password"`
	Message              string     `json:"message"`
	Auth                 FlexInt    `json:"auth"`
	Status               string     `json:"status"`
	ExpDate              FlexString `json:"exp_date"`
	IsTrial              FlexString `json:"is_trial"`
	ActiveCons           FlexString `json:"active_cons"`
	CreatedAt            FlexString `json:"created_at"`
	MaxConnections       FlexString `json:"max_connections"`
	AllowedOutputFormats StringList `json:"allowed_output_formats"`
}

// ServerInfo is the server_info block of the bare player_api call.
type ServerInfo struct {
	URL            string     `json:"url"`
	Port           FlexString `json:"port"`
	HTTPSPort      FlexString `json:"https_port"`
	ServerProtocol string     `json:"server_protocol"`
	RTMPPort       FlexString `json:"rtmp_port"`
	Timezone       string     `json:"timezone"`
	TimestampNow   FlexInt    `json:"timestamp_now"`
	TimeNow        string     `json:"time_now"`
}

// AccountInfo is the bare player_api.php response (no action).
type AccountInfo struct {
	UserInfo   UserInfo   `json:"user_info"`
	ServerInfo ServerInfo `json:"server_info"`
}
