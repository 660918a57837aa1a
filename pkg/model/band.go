package model

// Band is a group the authenticated identity belongs to.
type Band struct {
	BandKey       string `json:"band_key" yaml:"bandKey" validate:"required"`
	Name          string `json:"name" yaml:"name"`
	CoverImageURL string `json:"cover" yaml:"cover"`
	MemberCount   int    `json:"member_count" yaml:"memberCount" validate:"gte=0"`
}

// BandListResponse is the data payload of the band directory endpoint.
type BandListResponse struct {
	ResultData struct {
		Bands []Band `json:"bands"`
	} `json:"result_data"`
}
