package catalog

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/telecast/telecast/internal/store"
	"github.com/telecast/telecast/internal/xtream"
)

// Converters from provider payloads to store rows. List-valued fields
// are stored as JSON text, matching the columns they fill.

func encodeStringList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func rawJSON(raw json.RawMessage, empty string) string {
	if len(raw) == 0 {
		return empty
	}
	return string(raw)
}

func categoryRows(list []xtream.Category) []store.Category {
	rows := make([]store.Category, 0, len(list))
	for _, c := range list {
		rows = append(rows, store.Category{
			CategoryID: string(c.CategoryID),
			Name:       c.CategoryName,
			ParentID:   int(c.ParentID),
		})
	}
	return rows
}

func liveChannelRows(list []xtream.LiveStream) []store.LiveChannel {
	rows := make([]store.LiveChannel, 0, len(list))
	for _, ls := range list {
		rows = append(rows, store.LiveChannel{
			Num:               int(ls.Num),
			Name:              ls.Name,
			StreamType:        ls.StreamType,
			StreamID:          int(ls.StreamID),
			StreamIcon:        ls.StreamIcon,
			EPGChannelID:      string(ls.EPGChannelID),
			Added:             string(ls.Added),
			CategoryID:        string(ls.CategoryID),
			CustomSID:         string(ls.CustomSID),
			TVArchive:         int(ls.TVArchive),
			DirectSource:      ls.DirectSource,
			TVArchiveDuration: int(ls.TVArchiveDuration),
		})
	}
	return rows
}

func filmStreamRows(list []xtream.FilmStream) []store.FilmStream {
	rows := make([]store.FilmStream, 0, len(list))
	for _, fs := range list {
		rows = append(rows, store.FilmStream{
			Num:                int(fs.Num),
			Name:               fs.Name,
			StreamType:         fs.StreamType,
			StreamID:           int(fs.StreamID),
			StreamIcon:         fs.StreamIcon,
			Rating:             string(fs.Rating),
			Rating5Based:       float64(fs.Rating5Based),
			Added:              string(fs.Added),
			CategoryID:         string(fs.CategoryID),
			ContainerExtension: fs.ContainerExtension,
			CustomSID:          string(fs.CustomSID),
			DirectSource:       fs.DirectSource,
		})
	}
	return rows
}

func seriesRow(sr xtream.Series) store.Series {
	return store.Series{
		SeriesID:       int(sr.SeriesID),
		Name:           sr.Name,
		Cover:          sr.Cover,
		Plot:           sr.Plot,
		Cast:           sr.Cast,
		Director:       sr.Director,
		Genre:          sr.Genre,
		ReleaseDate:    sr.ReleaseDate,
		LastModified:   string(sr.LastModified),
		Rating:         string(sr.Rating),
		Rating5Based:   float64(sr.Rating5Based),
		BackdropPath:   encodeStringList(sr.BackdropPath),
		YoutubeTrailer: sr.YoutubeTrailer,
		EpisodeRunTime: string(sr.EpisodeRunTime),
		CategoryID:     string(sr.CategoryID),
	}
}

func seriesRows(list []xtream.Series) []store.Series {
	rows := make([]store.Series, 0, len(list))
	for _, sr := range list {
		rows = append(rows, seriesRow(sr))
	}
	return rows
}

// episodeRows flattens the provider's season-keyed episode map. The
// season number comes from the map key; entries whose key is not
// numeric fall back to the episode's own season field.
func episodeRows(seriesID int, seasons map[string][]xtream.Episode) []store.SeriesEpisode {
	var rows []store.SeriesEpisode
	for key, eps := range seasons {
		keyNum, keyErr := strconv.Atoi(strings.TrimSpace(key))
		for _, ep := range eps {
			season := keyNum
			if keyErr != nil {
				season = int(ep.Season)
			}
			rows = append(rows, store.SeriesEpisode{
				SeriesID:           seriesID,
				Season:             season,
				EpisodeID:          string(ep.ID),
				EpisodeNum:         int(ep.EpisodeNum),
				Title:              ep.Title,
				ContainerExtension: ep.ContainerExtension,
				Plot:               ep.Plot,
				Duration:           string(ep.Duration),
				Rating:             float64(ep.Rating),
				Info:               rawJSON(ep.Info, "{}"),
			})
		}
	}
	return rows
}

func filmDetailRow(vodID int, info *xtream.VODInfo) store.FilmDetail {
	return store.FilmDetail{
		StreamID:             vodID,
		Name:                 info.Info.Name,
		OName:                info.Info.OName,
		StreamIcon:           info.Info.MovieImage,
		CoverBig:             info.Info.CoverBig,
		MovieImage:           info.Info.MovieImage,
		Plot:                 info.Info.Plot,
		Cast:                 info.Info.Cast,
		Director:             info.Info.Director,
		Genre:                info.Info.Genre,
		ReleaseDate:          info.Info.ReleaseDate,
		Rating:               string(info.Info.Rating),
		Rating5Based:         float64(info.Info.Rating5Based),
		DurationSecs:         int(info.Info.DurationSecs),
		Duration:             info.Info.Duration,
		YoutubeTrailer:       info.Info.YoutubeTrailer,
		TMDBID:               string(info.Info.TMDBID),
		KinopoiskURL:         info.Info.KinopoiskURL,
		EpisodeRunTime:       string(info.Info.EpisodeRunTime),
		Actors:               info.Info.Actors,
		Description:          info.Info.Description,
		Age:                  string(info.Info.Age),
		MPAARating:           string(info.Info.MPAARating),
		RatingCountKinopoisk: int(info.Info.RatingCountKinopoisk),
		Country:              info.Info.Country,
		BackdropPath:         encodeStringList(info.Info.BackdropPath),
		Bitrate:              int(info.Info.Bitrate),
		Video:                rawJSON(info.Info.Video, "[]"),
		Audio:                rawJSON(info.Info.Audio, "[]"),
		ContainerExtension:   info.MovieData.ContainerExtension,
	}
}

func epgRows(streamID int, list []xtream.EPGListing) []store.EpgListing {
	rows := make([]store.EpgListing, 0, len(list))
	for _, l := range list {
		rows = append(rows, store.EpgListing{
			EPGID:          string(l.EPGID),
			Title:          l.Title,
			Lang:           l.Lang,
			Start:          l.Start,
			End:            l.End,
			Description:    l.Description,
			ChannelID:      l.ChannelID,
			StartTimestamp: int64(l.StartTimestamp),
			StopTimestamp:  int64(l.StopTimestamp),
			NowPlaying:     bool(l.NowPlaying),
			HasArchive:     bool(l.HasArchive),
			StreamID:       streamID,
		})
	}
	return rows
}

func accountRow(info *xtream.AccountInfo) store.AccountProfile {
	return store.AccountProfile{
		Username:             info.UserInfo.Username,
		Password:             info.UserInfo.Password,
		Message:              info.UserInfo.Message,
		Auth:                 int(info.UserInfo.Auth),
		Status:               info.UserInfo.Status,
		ExpDate:              string(info.UserInfo.ExpDate),
		IsTrial:              string(info.UserInfo.IsTrial),
		ActiveCons:           string(info.UserInfo.ActiveCons),
		CreatedAt:            string(info.UserInfo.CreatedAt),
		MaxConnections:       string(info.UserInfo.MaxConnections),
		AllowedOutputFormats: encodeStringList(info.UserInfo.AllowedOutputFormats),
		ServerURL:            info.ServerInfo.URL,
		ServerPort:           string(info.ServerInfo.Port),
		ServerHTTPSPort:      string(info.ServerInfo.HTTPSPort),
		ServerProtocol:       info.ServerInfo.ServerProtocol,
		ServerRTMPPort:       string(info.ServerInfo.RTMPPort),
		ServerTimezone:       info.ServerInfo.Timezone,
		ServerTimestampNow:   int64(info.ServerInfo.TimestampNow),
		ServerTimeNow:        info.ServerInfo.TimeNow,
	}
}
