package models

import (
	"cabview.railmap.org/internal/clock"
)

// ResponseModel is the envelope of every JSON API response.
type ResponseModel struct {
	Code        int    `json:"code"`
	CurrentTime int64  `json:"currentTime"`
	Text        string `json:"text"`
	Version     int    `json:"version"`
	Data        any    `json:"data,omitempty"`
}

const apiVersion = 1

func ResponseCurrentTime(c clock.Clock) int64 {
	if c == nil {
		c = clock.RealClock{}
	}
	return c.NowUnixMilli()
}

func NewOKResponse(data any, c clock.Clock) ResponseModel {
	return ResponseModel{
		Code:        200,
		CurrentTime: ResponseCurrentTime(c),
		Text:        "OK",
		Version:     apiVersion,
		Data:        data,
	}
}

// EntryData wraps a single object.
type EntryData struct {
	Entry any `json:"entry"`
}

func NewEntryResponse(entry any, c clock.Clock) ResponseModel {
	return NewOKResponse(EntryData{Entry: entry}, c)
}

// ListData wraps a list of objects.
type ListData struct {
	List any `json:"list"`
}

func NewListResponse(list any, c clock.Clock) ResponseModel {
	return NewOKResponse(ListData{List: list}, c)
}

func NewErrorResponse(code int, text string, c clock.Clock) ResponseModel {
	return ResponseModel{
		Code:        code,
		CurrentTime: ResponseCurrentTime(c),
		Text:        text,
		Version:     apiVersion,
	}
}
