package profiles

import "time"

// Head is the contact block at the top of a CV.
type Head struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Experience is one professional position.
type Experience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Description string `json:"description"`
}

// Education is one degree or course.
type Education struct {
	Degree      string `json:"degree"`
	School      string `json:"school"`
	Location    string `json:"location"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Description string `json:"description"`
}

// Data is the editable part of a profile, stored as one JSON document.
type Data struct {
	Head        Head         `json:"head"`
	Experiences []Experience `json:"experiences"`
	Educations  []Education  `json:"educations"`
	Skills      string       `json:"skills"`
	Hobbies     string       `json:"hobbies"`
	Languages   string       `json:"languages"`
}

// Profile is the owner's reusable CV content. There is one per user.
type Profile struct {
	UserID    string
	Data      Data
	PhotoPath string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Template returns the empty profile handed to a user on first access.
func Template(userID string, now time.Time) Profile {
	return Profile{
		UserID: userID,
		Data: Data{
			Experiences: []Experience{},
			Educations:  []Education{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Patch holds field-level profile changes. Nil fields are left untouched.
type Patch struct {
	Head        *Head
	Experiences *[]Experience
	Educations  *[]Education
	Skills      *string
	Hobbies     *string
	Languages   *string
}

// Apply writes the set fields of p onto d.
func (p Patch) Apply(d *Data) {
	if p.Head != nil {
		d.Head = *p.Head
	}
	if p.Experiences != nil {
		d.Experiences = append([]Experience{}, (*p.Experiences)...)
	}
	if p.Educations != nil {
		d.Educations = append([]Education{}, (*p.Educations)...)
	}
	if p.Skills != nil {
		d.Skills = *p.Skills
	}
	if p.Hobbies != nil {
		d.Hobbies = *p.Hobbies
	}
	if p.Languages != nil {
		d.Languages = *p.Languages
	}
}

func (d Data) normalized() Data {
	if d.Experiences == nil {
		d.Experiences = []Experience{}
	}
	if d.Educations == nil {
		d.Educations = []Education{}
	}
	return d
}
