package profiles

import "time"

// Response is the outward-facing representation of a profile.
type Response struct {
	Head        Head         `json:"head"`
	Experiences []Experience `json:"experiences"`
	Educations  []Education  `json:"educations"`
	Skills      string       `json:"skills"`
	Hobbies     string       `json:"hobbies"`
	Languages   string       `json:"languages"`
	HasPhoto    bool         `json:"hasPhoto"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// ToResponse converts a profile for the API.
func ToResponse(p Profile) Response {
	d := p.Data.normalized()
	return Response{
		Head:        d.Head,
		Experiences: d.Experiences,
		Educations:  d.Educations,
		Skills:      d.Skills,
		Hobbies:     d.Hobbies,
		Languages:   d.Languages,
		HasPhoto:    p.PhotoPath != "",
		UpdatedAt:   p.UpdatedAt,
	}
}

type updateRequest struct {
	Head        *Head         `json:"head"`
	Experiences *[]Experience `json:"experiences"`
	Educations  *[]Education  `json:"educations"`
	Skills      *string       `json:"skills"`
	Hobbies     *string       `json:"hobbies"`
	Languages   *string       `json:"languages"`
}

func (r updateRequest) patch() Patch {
	return Patch{
		Head:        r.Head,
		Experiences: r.Experiences,
		Educations:  r.Educations,
		Skills:      r.Skills,
		Hobbies:     r.Hobbies,
		Languages:   r.Languages,
	}
}
