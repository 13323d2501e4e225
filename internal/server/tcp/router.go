// Package tcpserver serves the framed request/response protocol over TCP,
// one request per connection.
package tcpserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/and161185/shopfloor/internal/convert"
	"github.com/and161185/shopfloor/internal/errs"
	"github.com/and161185/shopfloor/internal/model"
	"github.com/and161185/shopfloor/internal/protocol"
)

// Response messages produced by the router.
const (
	MsgMalformed     = "Malformed request."
	MsgUnknownType   = "Unknown message type."
	MsgBadCreds      = "Incorrect email or password."
	MsgRateLimited   = "Too many failed attempts, try later."
	MsgAccountExists = "Account already exists."
	MsgBadCredsBody  = "Invalid credentials payload."
	MsgIncorrect     = "Incorrect fields."
	MsgNoCode        = "no request code attached"
	MsgInternal      = "Internal error."
)

// Authenticator performs LOGIN and REGISTER.
type Authenticator interface {
	Login(ctx context.Context, email, password, peer string) (model.Account, string, error)
	Register(ctx context.Context, email, password, name string) (model.Account, string, error)
}

// Dispatcher runs action requests.
type Dispatcher interface {
	Dispatch(ctx context.Context, code int, token, body string) protocol.Response
}

// Validator checks DTO fields.
type Validator interface {
	Valid(dto any) bool
}

// HandlerFunc answers one decoded request from peer.
type HandlerFunc func(ctx context.Context, req protocol.Request, peer string) protocol.Response

// Router classifies requests by kind.
type Router struct {
	auth  Authenticator
	disp  Dispatcher
	valid Validator
}

// NewRouter constructs a Router.
func NewRouter(a Authenticator, d Dispatcher, v Validator) *Router {
	return &Router{auth: a, disp: d, valid: v}
}

// Handle implements HandlerFunc.
func (r *Router) Handle(ctx context.Context, req protocol.Request, peer string) protocol.Response {
	switch req.Type {
	case protocol.KindLogin:
		return r.login(ctx, req, peer)
	case protocol.KindRegister:
		return r.register(ctx, req)
	case protocol.KindRequest:
		if req.Code == nil {
			return protocol.Error(400, MsgNoCode)
		}
		return r.disp.Dispatch(ctx, *req.Code, req.TokenValue(), req.BodyValue())
	default:
		return protocol.Error(400, MsgUnknownType)
	}
}

func (r *Router) credentials(req protocol.Request) (protocol.Credentials, *protocol.Response) {
	var c protocol.Credentials
	if err := json.Unmarshal([]byte(req.BodyValue()), &c); err != nil {
		resp := protocol.Error(400, MsgBadCredsBody)
		return c, &resp
	}
	if !r.valid.Valid(c) {
		resp := protocol.Error(400, MsgIncorrect)
		return c, &resp
	}
	return c, nil
}

func (r *Router) login(ctx context.Context, req protocol.Request, peer string) protocol.Response {
	c, bad := r.credentials(req)
	if bad != nil {
		return *bad
	}
	a, tok, err := r.auth.Login(ctx, c.Email, c.Password, peer)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrUnauthorized):
			return protocol.Error(404, MsgBadCreds)
		case errors.Is(err, errs.ErrRateLimited):
			return protocol.Error(403, MsgRateLimited)
		default:
			return protocol.Error(500, MsgInternal)
		}
	}
	return protocol.Success(200, protocol.Session{Token: tok, Account: convert.ToWireAccount(a)})
}

func (r *Router) register(ctx context.Context, req protocol.Request) protocol.Response {
	c, bad := r.credentials(req)
	if bad != nil {
		return *bad
	}
	a, tok, err := r.auth.Register(ctx, c.Email, c.Password, c.Name)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrAlreadyExists):
			return protocol.Error(400, MsgAccountExists)
		case errors.Is(err, errs.ErrInvalidFields):
			return protocol.Error(400, MsgIncorrect)
		default:
			return protocol.Error(500, MsgInternal)
		}
	}
	return protocol.Success(201, protocol.Session{Token: tok, Account: convert.ToWireAccount(a)})
}
