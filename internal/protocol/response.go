package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ResponseType is the envelope discriminator.
type ResponseType string

// Envelope variants.
const (
	ResponseSuccess ResponseType = "ResponseSuccess"
	ResponseError   ResponseType = "ResponseError"
)

// Response is either a success carrying Data or an error carrying Message.
// Build values with Success and Error.
type Response struct {
	Type    ResponseType
	Code    int
	Data    Payload
	Message string
}

// Success builds a success envelope.
func Success(code int, data Payload) Response {
	return Response{Type: ResponseSuccess, Code: code, Data: data}
}

// Error builds an error envelope.
func Error(code int, message string) Response {
	return Response{Type: ResponseError, Code: code, Message: message}
}

// OK reports whether r is a success envelope.
func (r Response) OK() bool { return r.Type == ResponseSuccess }

type wireData struct {
	Type  PayloadType     `json:"type"`
	Value json.RawMessage `json:"value"`
}

type wireResponse struct {
	Type    ResponseType `json:"type"`
	Code    int          `json:"code"`
	Data    *wireData    `json:"data"`
	Message *string      `json:"message"`
}

// MarshalJSON writes the tagged wire form.
func (r Response) MarshalJSON() ([]byte, error) {
	w := wireResponse{Type: r.Type, Code: r.Code}
	switch r.Type {
	case ResponseSuccess:
		if r.Data != nil {
			v, err := json.Marshal(r.Data)
			if err != nil {
				return nil, err
			}
			w.Data = &wireData{Type: r.Data.PayloadType(), Value: v}
		}
	case ResponseError:
		msg := r.Message
		w.Message = &msg
	default:
		return nil, fmt.Errorf("unknown response type %q", r.Type)
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the tagged wire form.
func (r *Response) UnmarshalJSON(b []byte) error {
	var w wireResponse
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Type {
	case ResponseSuccess:
		out := Response{Type: w.Type, Code: w.Code}
		if w.Data != nil {
			p, err := decodePayload(w.Data.Type, w.Data.Value)
			if err != nil {
				return err
			}
			out.Data = p
		}
		*r = out
	case ResponseError:
		if w.Message == nil {
			return errors.New("error response without message")
		}
		*r = Response{Type: w.Type, Code: w.Code, Message: *w.Message}
	default:
		return fmt.Errorf("unknown response type %q", w.Type)
	}
	return nil
}

// DecodeResponse parses a response frame.
func DecodeResponse(b []byte) (Response, error) {
	var r Response
	if err := json.Unmarshal(b, &r); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return r, nil
}

// Encode serializes the response.
func (r Response) Encode() ([]byte, error) {
	return json.Marshal(r)
}

func decodePayload(t PayloadType, raw json.RawMessage) (Payload, error) {
	switch t {
	case TypeAccount:
		return decodeAs[Account](raw)
	case TypeAccountList:
		return decodeAs[AccountList](raw)
	case TypeInventoryItem:
		return decodeAs[InventoryItem](raw)
	case TypeInventoryItemList:
		return decodeAs[InventoryItemList](raw)
	case TypeDevice:
		return decodeAs[Device](raw)
	case TypeDeviceList:
		return decodeAs[DeviceList](raw)
	case TypeWorkItem:
		return decodeAs[WorkItem](raw)
	case TypeWorkItemList:
		return decodeAs[WorkItemList](raw)
	case TypeOrder:
		return decodeAs[Order](raw)
	case TypeOrderList:
		return decodeAs[OrderList](raw)
	case TypeShift:
		return decodeAs[Shift](raw)
	case TypeShiftList:
		return decodeAs[ShiftList](raw)
	case TypeSession:
		return decodeAs[Session](raw)
	default:
		return nil, fmt.Errorf("unknown payload type %q", t)
	}
}

func decodeAs[P Payload](raw json.RawMessage) (Payload, error) {
	var p P
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return p, nil
}
