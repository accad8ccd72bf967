package tmdb

import "strings"

const (
	imageBaseURL     = "https://image.tmdb.org/t/p/"
	PlaceholderImage = "https://placehold.co/500x750?text=No+Image"
)

// Movie is the summary shape shared by every paged TMDB movie listing.
type Movie struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview,omitempty"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	ReleaseDate  string  `json:"release_date"`
	VoteAverage  float64 `json:"vote_average"`
	GenreIDs     []int   `json:"genre_ids,omitempty"`
	Runtime      *int    `json:"runtime,omitempty"`
}

// Year returns the release year or "N/A".
func (m Movie) Year() string {
	if y, _, ok := strings.Cut(m.ReleaseDate, "-"); ok && y != "" {
		return y
	}
	return "N/A"
}

type Page struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Country struct {
	ISO31661 string `json:"iso_3166_1"`
	Name     string `json:"name"`
}

type CastMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	ProfilePath string `json:"profile_path"`
}

type CrewMember struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Job        string `json:"job"`
	Department string `json:"department"`
}

type WatchProvider struct {
	ProviderID   int    `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	LogoPath     string `json:"logo_path"`
}

type RegionProviders struct {
	Link     string          `json:"link"`
	Flatrate []WatchProvider `json:"flatrate,omitempty"`
	Rent     []WatchProvider `json:"rent,omitempty"`
	Buy      []WatchProvider `json:"buy,omitempty"`
}

type Keyword struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// MovieDetail is /movie/{id} with credits, watch/providers and keywords appended.
type MovieDetail struct {
	Movie
	Genres              []Genre   `json:"genres"`
	ProductionCountries []Country `json:"production_countries"`
	Credits             struct {
		Cast []CastMember `json:"cast"`
		Crew []CrewMember `json:"crew"`
	} `json:"credits"`
	WatchProviders struct {
		Results map[string]RegionProviders `json:"results"`
	} `json:"watch/providers"`
	Keywords struct {
		Keywords []Keyword `json:"keywords"`
	} `json:"keywords"`
}

type Image struct {
	FilePath    string  `json:"file_path"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	VoteAverage float64 `json:"vote_average"`
}

type Images struct {
	ID        int64   `json:"id"`
	Posters   []Image `json:"posters"`
	Backdrops []Image `json:"backdrops"`
}

// ImageURL resolves a poster/backdrop path; empty paths map to the placeholder.
func ImageURL(path, size string) string {
	if path == "" {
		return PlaceholderImage
	}
	if size == "" {
		size = "w500"
	}
	return imageBaseURL + size + path
}
