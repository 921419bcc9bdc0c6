package entity

import (
	"fmt"
	"strings"
)

// Badge is the backend's answer to a badge or check-in request.
type Badge struct {
	TicketID         string `json:"ticketId"`
	UserID           string `json:"userId,omitempty"`
	Name             string `json:"name"`
	Profession       string `json:"profession,omitempty"`
	CheckedIn        bool   `json:"checkedIn"`
	CheckedInAt      string `json:"checkedInAt,omitempty"`
	AlreadyCheckedIn bool   `json:"alreadyCheckedIn,omitempty"`
	ContentType      string `json:"contentType,omitempty"`
	PDFBase64        string `json:"pdfBase64"`
}

// FileName is the name the badge PDF is saved under.
func (b Badge) FileName() string {
	return BadgeFileName(b.TicketID)
}

func BadgeFileName(ticketID string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, ticketID)

	return fmt.Sprintf("badge_%s.pdf", safe)
}
