package types

import (
	"strings"
	"time"
)

// =============================================================================
// BUSINESS SNAPSHOT
// =============================================================================

// BookingStatus is the lifecycle state of a booking as seen in the snapshot.
type BookingStatus string

const (
	BookingUpcoming  BookingStatus = "upcoming"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	BookingNoShow    BookingStatus = "no_show"
)

// Client is one customer record in the snapshot.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Service is one bookable service.
type Service struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	DurationMin int     `json:"duration_min"`

	// RebookIntervalDays is the category default used when a client's own
	// history is too thin to estimate an interval.
	RebookIntervalDays int `json:"rebook_interval_days,omitempty"`
}

// Booking is one appointment, past or future.
type Booking struct {
	ID        string        `json:"id"`
	ClientID  string        `json:"client_id"`
	ServiceID string        `json:"service_id"`
	Start     time.Time     `json:"start"`
	CreatedAt time.Time     `json:"created_at"`
	Status    BookingStatus `json:"status"`
	Price     float64       `json:"price,omitempty"`
}

// Order is a retail/product sale.
type Order struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	Total     float64   `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageDirection distinguishes inbound client messages from outbound replies.
type MessageDirection string

const (
	MessageIn  MessageDirection = "in"
	MessageOut MessageDirection = "out"
)

// Message is one entry in the client message log.
type Message struct {
	ID        string           `json:"id"`
	ClientID  string           `json:"client_id"`
	Direction MessageDirection `json:"direction"`
	Body      string           `json:"body"`
	SentAt    time.Time        `json:"sent_at"`
	Answered  bool             `json:"answered"`
}

// InventoryItem is one stocked product.
type InventoryItem struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	OnHand    int    `json:"on_hand"`
	ReorderAt int    `json:"reorder_at"`
	Used30d   int    `json:"used_30d"`
}

// Snapshot is the immutable, caller-supplied view of business state that the
// router, spines, compiler, and suggestion engines read. The core never
// mutates it; Now pins wall-clock time so every derivation is reproducible.
type Snapshot struct {
	Now       time.Time       `json:"now"`
	Clients   []Client        `json:"clients"`
	Services  []Service       `json:"services"`
	Bookings  []Booking       `json:"bookings"`
	Orders    []Order         `json:"orders"`
	Messages  []Message       `json:"messages"`
	Inventory []InventoryItem `json:"inventory"`
}

// ClientByID returns the client with the given ID, or nil.
func (s *Snapshot) ClientByID(id string) *Client {
	for i := range s.Clients {
		if s.Clients[i].ID == id {
			return &s.Clients[i]
		}
	}
	return nil
}

// ClientByName returns the first client whose name matches case-insensitively, or nil.
func (s *Snapshot) ClientByName(name string) *Client {
	for i := range s.Clients {
		if strings.EqualFold(s.Clients[i].Name, name) {
			return &s.Clients[i]
		}
	}
	return nil
}

// ServiceByID returns the service with the given ID, or nil.
func (s *Snapshot) ServiceByID(id string) *Service {
	for i := range s.Services {
		if s.Services[i].ID == id {
			return &s.Services[i]
		}
	}
	return nil
}

// ServiceByName returns the first service whose name matches case-insensitively, or nil.
func (s *Snapshot) ServiceByName(name string) *Service {
	for i := range s.Services {
		if strings.EqualFold(s.Services[i].Name, name) {
			return &s.Services[i]
		}
	}
	return nil
}

// BookingsForClient returns the client's bookings in snapshot order.
func (s *Snapshot) BookingsForClient(clientID string) []Booking {
	var out []Booking
	for _, b := range s.Bookings {
		if b.ClientID == clientID {
			out = append(out, b)
		}
	}
	return out
}
