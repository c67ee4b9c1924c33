package models

// ReferenceCounts sizes the loaded reference dataset.
type ReferenceCounts struct {
	Lines    int `json:"lines"`
	Stations int `json:"stations"`
}

// ConfigModel describes the running server to map clients.
type ConfigModel struct {
	Id                   string          `json:"id"`
	Name                 string          `json:"name"`
	Version              string          `json:"version"`
	ClickThresholdMeters float64         `json:"clickThresholdMeters"`
	SpatialIndex         bool            `json:"spatialIndex"`
	TextProcessor        string          `json:"textProcessor"`
	Reference            ReferenceCounts `json:"reference"`
}
