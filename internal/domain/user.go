package domain

import "time"

// User representa una cuenta de autor o revisor registrada en la plataforma.
type User struct {
	ID                  int64     `json:"id"`
	Title               string    `json:"title"`
	FirstName           string    `json:"first_name"`
	Middle              string    `json:"middle,omitempty"`
	LastName            string    `json:"last_name"`
	Degree              string    `json:"degree"`
	Specialty           string    `json:"specialty,omitempty"`
	Phone               string    `json:"phone"`
	Country             string    `json:"country"`
	ORCID               string    `json:"orcid"`
	Email               string    `json:"email"`
	AlternativeEmail    string    `json:"alternative_email,omitempty"`
	Username            string    `json:"username"`
	PasswordHash        string    `json:"-"`
	Role                string    `json:"role"`
	AvailableAsReviewer bool      `json:"available_as_reviewer"`
	ReceiveNews         bool      `json:"receive_news"`
	Comments            string    `json:"comments,omitempty"`
	IsVerified          bool      `json:"is_verified"`
	VerificationToken   string    `json:"-"`
	RefreshToken        string    `json:"-"`
	CreatedAt           time.Time `json:"created_at"`
}

// PublicUser es la identidad minima expuesta en listados y rutas protegidas.
type PublicUser struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// AuthorInfo es el subconjunto devuelto al buscar coautores por email.
type AuthorInfo struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}
