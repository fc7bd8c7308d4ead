package places

// Wire types for a Places-style nearby-search API response.

type nearbyResponse struct {
	HTMLAttributions []string      `json:"html_attributions"`
	NextPageToken    string        `json:"next_page_token"`
	Results          []placeResult `json:"results"`
	Status           string        `json:"status"`
	ErrorMessage     string        `json:"error_message,omitempty"`
}

type placeResult struct {
	BusinessStatus   *string       `json:"business_status,omitempty"`
	Geometry         geometry      `json:"geometry"`
	Name             string        `json:"name"`
	OpeningHours     *openingHours `json:"opening_hours,omitempty"`
	Photos           []photo       `json:"photos,omitempty"`
	PlaceID          string        `json:"place_id"`
	PriceLevel       *int          `json:"price_level,omitempty"`
	Rating           *float64      `json:"rating,omitempty"`
	Types            []string      `json:"types"`
	UserRatingsTotal *int          `json:"user_ratings_total,omitempty"`
	Vicinity         *string       `json:"vicinity,omitempty"`
}

type geometry struct {
	Location location `json:"location"`
}

type location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type openingHours struct {
	OpenNow bool `json:"open_now"`
}

type photo struct {
	Height         int    `json:"height"`
	Width          int    `json:"width"`
	PhotoReference string `json:"photo_reference"`
}
