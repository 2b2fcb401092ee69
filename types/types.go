package types

import (
	"fmt"
	"time"
)

type Role string

const (
	RolePlayer     Role = "player"
	RoleVenueOwner Role = "venue_owner"
	RoleAdmin      Role = "admin"
)

var roleRank = map[Role]int{
	RolePlayer:     1,
	RoleVenueOwner: 2,
	RoleAdmin:      3,
}

// Covers reports whether r is the required role or privileged above it.
// Unknown roles cover nothing.
func (r Role) Covers(required Role) bool {
	have, ok := roleRank[r]
	if !ok {
		return false
	}
	return have >= roleRank[required]
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Profile is the display profile kept alongside the bearer token.
type Profile struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Role           Role    `json:"role"`
	Phone          string  `json:"phone,omitempty"`
	City           string  `json:"city,omitempty"`
	ProfilePicture string  `json:"profilePicture,omitempty"`
	EloRating      float64 `json:"eloRating,omitempty"`
	TrustScore     float64 `json:"trustScore,omitempty"`
}

// Session is the persisted proof of authentication for one chat.
type Session struct {
	Token   string  `json:"token"`
	Profile Profile `json:"profile"`
}

// Complete reports whether both halves of the session are present.
func (s Session) Complete() bool {
	return s.Token != "" && s.Profile.ID != "" && s.Profile.Role != ""
}

type Field struct {
	ID           string  `json:"id"`
	VenueID      string  `json:"venueId"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	SurfaceType  string  `json:"surfaceType"`
	HasLighting  bool    `json:"hasLighting"`
	HasRoof      bool    `json:"hasRoof"`
	PricePerHour float64 `json:"pricePerHour,omitempty"`
}

type Venue struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Address       string  `json:"address"`
	City          string  `json:"city"`
	District      string  `json:"district"`
	PricePerHour  float64 `json:"pricePerHour"`
	AverageRating float64 `json:"averageRating"`
	TotalReviews  int     `json:"totalReviews"`
	Fields        []Field `json:"fields"`
}

// FieldByID returns the venue's field with the given id.
func (v Venue) FieldByID(id string) (Field, bool) {
	for _, f := range v.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// HourlyPrice of a field, falling back to the venue price.
func (v Venue) HourlyPrice(f Field) float64 {
	if f.PricePerHour > 0 {
		return f.PricePerHour
	}
	return v.PricePerHour
}

// BookedSlot is an already reserved interval reported by the backend.
type BookedSlot struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationCompleted ReservationStatus = "completed"
	ReservationNoShow    ReservationStatus = "no_show"
)

var ReservationStatuses = []ReservationStatus{
	ReservationPending,
	ReservationConfirmed,
	ReservationCancelled,
	ReservationCompleted,
	ReservationNoShow,
}

// Terminal statuses accept no further transitions from the client.
func (s ReservationStatus) Terminal() bool {
	switch s {
	case ReservationCancelled, ReservationCompleted, ReservationNoShow:
		return true
	}
	return false
}

type Reservation struct {
	ID            string            `json:"id"`
	FieldID       string            `json:"fieldId"`
	UserID        string            `json:"userId"`
	Date          string            `json:"date"`
	StartTime     string            `json:"startTime"`
	EndTime       string            `json:"endTime"`
	TotalPrice    float64           `json:"totalPrice"`
	Status        ReservationStatus `json:"status"`
	PaymentStatus string            `json:"paymentStatus"`
	VenueName     string            `json:"venueName,omitempty"`
	FieldName     string            `json:"fieldName,omitempty"`
	UserName      string            `json:"userName,omitempty"`
}

// Label is a short single-line description used in lists.
func (r Reservation) Label() string {
	where := r.FieldName
	if r.VenueName != "" {
		where = r.VenueName + " / " + r.FieldName
	}
	return fmt.Sprintf("%s %s-%s %s", r.Date, r.StartTime, r.EndTime, where)
}

type NewReservation struct {
	FieldID    string  `json:"fieldId"`
	Date       string  `json:"date"`
	StartTime  string  `json:"startTime"`
	EndTime    string  `json:"endTime"`
	TotalPrice float64 `json:"totalPrice"`
}

type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationRejected  InvitationStatus = "rejected"
	InvitationCancelled InvitationStatus = "cancelled"
	InvitationExpired   InvitationStatus = "expired"
)

type TeamRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Invitation struct {
	ID      string           `json:"id"`
	Team    TeamRef          `json:"team"`
	Message string           `json:"message"`
	Status  InvitationStatus `json:"status"`
}

type MatchProposal struct {
	ID               string           `json:"id"`
	CounterpartyTeam TeamRef          `json:"counterpartyTeam"`
	Message          string           `json:"message"`
	Status           InvitationStatus `json:"status"`
	ProposedDate     string           `json:"proposedDate,omitempty"`
}

// Response is the accept/reject answer to an invitation or proposal.
type Response string

const (
	Accept Response = "accept"
	Reject Response = "reject"
)

type PlayerRating struct {
	RatedUserID   string `json:"ratedUserId"`
	Speed         int    `json:"speed"`
	Technique     int    `json:"technique"`
	Passing       int    `json:"passing"`
	Physical      int    `json:"physical"`
	ShowedUp      bool   `json:"showedUp"`
	CausedTrouble bool   `json:"causedTrouble"`
	WasLate       bool   `json:"wasLate"`
	Comment       string `json:"comment,omitempty"`
}

// NewPlayerRating returns a draft with mid-range scores.
func NewPlayerRating(userID string) PlayerRating {
	return PlayerRating{
		RatedUserID: userID,
		Speed:       50,
		Technique:   50,
		Passing:     50,
		Physical:    50,
		ShowedUp:    true,
	}
}

type RatingSummary struct {
	UserID       string         `json:"userId"`
	Average      float64        `json:"average"`
	TotalRatings int            `json:"totalRatings"`
	Ratings      []PlayerRating `json:"ratings"`
}

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

type Team struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	CaptainName string  `json:"captainName"`
	MemberCount int     `json:"memberCount"`
	EloRating   float64 `json:"eloRating"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Paged is a server-paginated collection.
type Paged[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

type AdminStats struct {
	TotalUsers        int     `json:"totalUsers"`
	TotalVenues       int     `json:"totalVenues"`
	TotalReservations int     `json:"totalReservations"`
	TotalTeams        int     `json:"totalTeams"`
	TotalRevenue      float64 `json:"totalRevenue"`
}

type DetailedStats struct {
	ReservationsByStatus map[string]int `json:"reservationsByStatus"`
	UsersByRole          map[string]int `json:"usersByRole"`
	TopVenues            []struct {
		Name         string `json:"name"`
		Reservations int    `json:"reservations"`
	} `json:"topVenues"`
}

type ProfileUpdate struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	City  string `json:"city,omitempty"`
}

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}
