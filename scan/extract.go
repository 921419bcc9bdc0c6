package scan

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

var (
	jsonTicketKeys  = []string{"ticketId", "ticket_id", "id"}
	queryTicketKeys = []string{"ticketId", "ticket_id"}
)

// ExtractTicketID pulls a ticket identifier out of decoded QR text.
// JSON payloads are tried first, then URLs, then the trimmed text itself.
// An empty result means the scan carried nothing usable.
func ExtractTicketID(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	if id, ok := fromJSON(text); ok {
		return id
	}

	if id, ok := fromURL(text); ok {
		return id
	}

	return text
}

func fromJSON(text string) (string, bool) {
	if !strings.HasPrefix(text, "{") {
		return "", false
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return "", false
	}
	// a single JSON value only, anything after it makes the text plain
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return "", false
	}

	for _, key := range jsonTicketKeys {
		var value string
		switch v := payload[key].(type) {
		case string:
			value = v
		case json.Number:
			value = v.String()
		default:
			continue
		}

		if value = strings.TrimSpace(value); value != "" {
			return value, true
		}
	}

	return "", false
}

func fromURL(text string) (string, bool) {
	u, err := url.Parse(text)
	if err != nil || u.Scheme == "" || (u.Host == "" && u.Opaque == "") {
		return "", false
	}

	query := u.Query()
	for _, key := range queryTicketKeys {
		if value := strings.TrimSpace(query.Get(key)); value != "" {
			return value, true
		}
	}

	// split before unescaping so an encoded slash stays inside its segment
	segments := lo.FilterMap(strings.Split(u.EscapedPath(), "/"), func(s string, _ int) (string, bool) {
		segment, err := url.PathUnescape(s)
		if err != nil {
			segment = s
		}
		segment = strings.TrimSpace(segment)
		return segment, segment != ""
	})
	if len(segments) == 0 {
		return "", false
	}

	return segments[len(segments)-1], true
}
