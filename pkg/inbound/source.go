package inbound

import (
	"fmt"
	"strings"
)

// Source identifies the transport family a message arrived on.
type Source int

const (
	SourceOther Source = iota
	SourceHTTP
	SourceMQTT
	SourceMQ
	SourceFile
	SourceScheduled
	SourceEmptyHTTPContext
)

var sourceNames = map[Source]string{
	SourceOther:            "OTHER",
	SourceHTTP:             "HTTP",
	SourceMQTT:             "MQTT",
	SourceMQ:               "MQ",
	SourceFile:             "FILE",
	SourceScheduled:        "SCHEDULED",
	SourceEmptyHTTPContext: "EMPTY_HTTP_CONTEXT",
}

func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// ParseSource accepts names case-insensitively. An unknown name is an error;
// an empty one maps to SourceOther.
func ParseSource(name string) (Source, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return SourceOther, nil
	}
	for s, n := range sourceNames {
		if n == name {
			return s, nil
		}
	}
	return SourceOther, fmt.Errorf("unknown source %q", name)
}

func Sources() []Source {
	return []Source{SourceHTTP, SourceMQTT, SourceMQ, SourceFile, SourceScheduled, SourceOther, SourceEmptyHTTPContext}
}

func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Source) UnmarshalText(text []byte) error {
	parsed, err := ParseSource(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
