package assistant

import (
	"context"

	"github.com/andresvillarreal/comprabot-backend/pkg/uicontrol"
)

// FragmentType discriminates the self-describing response units.
type FragmentType string

const (
	FragmentText      FragmentType = "text"
	FragmentVoice     FragmentType = "voice"
	FragmentRich      FragmentType = "rich"
	FragmentUIControl FragmentType = "ui_control"
)

// Fragment is one unit of an assistant response. Exactly one payload field is
// populated, matching Type.
type Fragment struct {
	Type FragmentType         `json:"type"`
	Text string               `json:"text,omitempty"`
	Rich any                  `json:"rich,omitempty"`
	UI   *uicontrol.Directive `json:"ui,omitempty"`
}

// EmitFunc receives fragments in production order. Returning an error stops
// the producer; remaining fragments are never computed.
type EmitFunc func(ctx context.Context, fragment Fragment) error

// Text builds a text fragment.
func Text(text string) Fragment {
	return Fragment{Type: FragmentText, Text: text}
}

// Voice builds a voice fragment carrying text for client-side synthesis.
func Voice(text string) Fragment {
	return Fragment{Type: FragmentVoice, Text: text}
}

// Rich builds a rich fragment with a structured payload.
func Rich(payload any) Fragment {
	return Fragment{Type: FragmentRich, Rich: payload}
}

// UI builds a ui_control fragment. Directives are emitted last in a response.
func UI(directive *uicontrol.Directive) Fragment {
	return Fragment{Type: FragmentUIControl, UI: directive}
}
