package domain

// DetectedRegion is the area of interest within one photo, expressed as
// fractions of the image dimensions.
type DetectedRegion struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Prediction is a single classifier label with its confidence.
type Prediction struct {
	TagName     string  `json:"tagName"`
	Probability float64 `json:"probability"`
}

// TagScore is one entry of the cross-image tag ranking: the summed
// probability of a tag over every image in the request.
type TagScore struct {
	TagName     string
	Probability float64
}
