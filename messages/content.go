package messages

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var jsonNull = []byte(`null`)

// ContentOrParts holds either plain string content or a list of content
// parts. It serializes to a JSON string when Content is set and to an array
// otherwise, matching what chat completion APIs accept for user input.
type ContentOrParts struct {
	Content string
	Parts   []ContentPart
	_       struct{} // require keyed usage
}

func (c ContentOrParts) MarshalJSON() ([]byte, error) {
	if strings.TrimSpace(c.Content) != "" {
		return json.Marshal(c.Content)
	}
	if c.Parts == nil {
		return jsonNull, nil
	}
	return json.Marshal(c.Parts)
}

func (c *ContentOrParts) UnmarshalJSON(input []byte) error {
	if !gjson.ValidBytes(input) {
		return fmt.Errorf("invalid json: %s", input)
	}
	jv := gjson.ParseBytes(input)
	if jv.IsArray() {
		aj := jv.Array()
		parts := make([]ContentPart, len(aj))
		for idx, ajv := range aj {
			tpe := ajv.Get("type").String()
			switch tpe {
			case "text":
				var part TextContentPart
				if err := part.UnmarshalJSON([]byte(ajv.Raw)); err != nil {
					return fmt.Errorf("invalid text part at %d: %w", idx, err)
				}
				parts[idx] = part
			case "image":
				var part ImageContentPart
				if err := part.UnmarshalJSON([]byte(ajv.Raw)); err != nil {
					return fmt.Errorf("invalid image part at %d: %w", idx, err)
				}
				parts[idx] = part
			case "audio":
				var part AudioContentPart
				if err := part.UnmarshalJSON([]byte(ajv.Raw)); err != nil {
					return fmt.Errorf("invalid audio part at %d: %w", idx, err)
				}
				parts[idx] = part
			default:
				return fmt.Errorf("content part at %d has an unknown type %q", idx, tpe)
			}
		}
		c.Parts = parts
		return nil
	}
	c.Content = jv.String()
	return nil
}

// AssistantContentOrParts is the assistant-side counterpart of
// ContentOrParts. Its parts are restricted to text and refusal.
type AssistantContentOrParts struct {
	Content string
	Parts   []AssistantContentPart
	_       struct{} // require keyed usage
}

func (c AssistantContentOrParts) MarshalJSON() ([]byte, error) {
	if strings.TrimSpace(c.Content) != "" {
		return json.Marshal(c.Content)
	}
	if c.Parts == nil {
		return jsonNull, nil
	}
	return json.Marshal(c.Parts)
}

func (c *AssistantContentOrParts) UnmarshalJSON(input []byte) error {
	if !gjson.ValidBytes(input) {
		return fmt.Errorf("invalid json: %s", input)
	}
	jv := gjson.ParseBytes(input)
	if jv.IsArray() {
		aj := jv.Array()
		parts := make([]AssistantContentPart, len(aj))
		for idx, ajv := range aj {
			tpe := ajv.Get("type").String()
			switch tpe {
			case "text":
				var part TextContentPart
				if err := part.UnmarshalJSON([]byte(ajv.Raw)); err != nil {
					return fmt.Errorf("invalid assistant text part at %d: %w", idx, err)
				}
				parts[idx] = part
			case "refusal":
				var part RefusalContentPart
				if err := part.UnmarshalJSON([]byte(ajv.Raw)); err != nil {
					return fmt.Errorf("invalid assistant refusal part at %d: %w", idx, err)
				}
				parts[idx] = part
			default:
				return fmt.Errorf("content part at %d has an unknown type %q", idx, tpe)
			}
		}
		c.Parts = parts
		return nil
	}
	c.Content = jv.String()
	return nil
}

// ContentPart marks the types that can appear in user message content.
type ContentPart interface {
	contentPart()
}

// AssistantContentPart marks the types that can appear in assistant message
// content.
type AssistantContentPart interface {
	assistantContentPart()
}

// Text builds a text content part.
func Text(text string) TextContentPart {
	return TextContentPart{Text: text}
}

// TextContentPart is a plain text fragment. It is valid in both user and
// assistant content.
type TextContentPart struct {
	Text string   `json:"text"`
	_    struct{} // require keyed usage
}

func (TextContentPart) contentPart()          {}
func (TextContentPart) assistantContentPart() {}

var tcpJSON = []byte(`{"type":"text"}`)

func (t TextContentPart) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes(tcpJSON, "text", t.Text)
}

func (t *TextContentPart) UnmarshalJSON(input []byte) error {
	text := gjson.GetBytes(input, "text")
	if !text.Exists() {
		return errors.New("missing required field 'text'")
	}
	t.Text = text.String()
	return nil
}

// Refusal builds a refusal content part with the given reason.
func Refusal(reason string) RefusalContentPart {
	return RefusalContentPart{Refusal: reason}
}

// RefusalContentPart records that the model declined to answer.
type RefusalContentPart struct {
	Refusal string   `json:"refusal"`
	_       struct{} // require keyed usage
}

func (RefusalContentPart) assistantContentPart() {}

var rcpJSON = []byte(`{"type":"refusal"}`)

func (t RefusalContentPart) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes(rcpJSON, "refusal", t.Refusal)
}

func (t *RefusalContentPart) UnmarshalJSON(input []byte) error {
	refusal := gjson.GetBytes(input, "refusal")
	if !refusal.Exists() {
		return errors.New("missing required field 'refusal'")
	}
	t.Refusal = refusal.String()
	return nil
}

// Image builds an image content part pointing at the given URL.
func Image(url string) ImageContentPart {
	return ImageContentPart{URL: url}
}

// ImageContentPart references an image by URL for multimodal prompts.
type ImageContentPart struct {
	URL string   `json:"image_url"`
	_   struct{} // require keyed usage
}

func (ImageContentPart) contentPart() {}

var icpJSON = []byte(`{"type":"image"}`)

func (i ImageContentPart) MarshalJSON() ([]byte, error) {
	return sjson.SetBytes(icpJSON, "image_url", i.URL)
}

func (i *ImageContentPart) UnmarshalJSON(input []byte) error {
	uri := gjson.GetBytes(input, "image_url")
	if !uri.Exists() {
		return errors.New("missing required field 'image_url'")
	}
	i.URL = uri.String()
	return nil
}

// Audio builds an audio content part from raw audio bytes and their encoding
// format ("wav", "mp3").
func Audio(data []byte, format string) AudioContentPart {
	return AudioContentPart{InputAudio: InputAudio{Data: data, Format: format}}
}

// InputAudio carries raw audio bytes, serialized as base64.
type InputAudio struct {
	Data   []byte   `json:"-"`
	Format string   `json:"format"`
	_      struct{} // require keyed usage
}

func (i InputAudio) MarshalJSON() ([]byte, error) {
	type Alias InputAudio
	return json.Marshal(&struct {
		Data string `json:"data"`
		*Alias
	}{
		Data:  base64.StdEncoding.EncodeToString(i.Data),
		Alias: (*Alias)(&i),
	})
}

func (i *InputAudio) UnmarshalJSON(data []byte) error {
	type Alias InputAudio
	aux := &struct {
		Data string `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(i),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	var err error
	i.Data, err = base64.StdEncoding.DecodeString(aux.Data)
	return err
}

// AudioContentPart attaches audio input to a user message.
type AudioContentPart struct {
	InputAudio InputAudio `json:"input_audio"`
	_          struct{}   // require keyed usage
}

func (AudioContentPart) contentPart() {}

var acpJSON = []byte(`{"type":"audio"}`)

func (i AudioContentPart) MarshalJSON() ([]byte, error) {
	jj, err := json.Marshal(i.InputAudio)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(acpJSON, "input_audio", jj)
}

func (i *AudioContentPart) UnmarshalJSON(input []byte) error {
	audio := gjson.GetBytes(input, "input_audio")
	if !audio.Exists() {
		return errors.New("missing required field 'input_audio'")
	}
	if !audio.IsObject() {
		return errors.New("'input_audio' must be an object")
	}
	return i.InputAudio.UnmarshalJSON([]byte(audio.Raw))
}
