// Package api exposes the publisher over a local HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Fire-Hyun/naverPost-sub000/internal/cdp"
	"github.com/Fire-Hyun/naverPost-sub000/internal/post"
	"github.com/Fire-Hyun/naverPost-sub000/internal/publish"
	"github.com/Fire-Hyun/naverPost-sub000/internal/session"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Service is what the HTTP layer needs from the publisher. Publish calls are
// serialized by the implementation: the browser profile is single-writer.
type Service interface {
	Publish(ctx context.Context, draft post.Draft) (*publish.Result, error)
	LoginStatus(ctx context.Context) (session.LoginStatus, error)
	RecentAttempts(limit int) []publish.AttemptRecord
}

type publishInput struct {
	Body post.Draft
}

type publishOutput struct {
	Body publish.Result
}

type loginStatusOutput struct {
	Body session.LoginStatus
}

type healthOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

type attemptsInput struct {
	Limit int `query:"limit" default:"20" doc:"Maximum number of records, newest first."`
}

type attemptsOutput struct {
	Body struct {
		Attempts []publish.AttemptRecord `json:"attempts"`
	}
}

// NewServer builds the HTTP handler for the publisher API.
func NewServer(svc Service) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Blog Draft Publisher API", "1.0.0")
	api := humachi.New(router, cfg)

	huma.Register(api, huma.Operation{OperationID: "publish-draft", Method: http.MethodPost, Path: "/api/v1/publish", Summary: "Publish a draft as a verified temporary save", Tags: []string{"Publish"}},
		func(ctx context.Context, input *publishInput) (*publishOutput, error) {
			result, err := svc.Publish(ctx, input.Body)
			if err != nil && result == nil {
				return nil, mapErr(err)
			}
			// A failed attempt still returns the structured result; the
			// category and message live there, not in an HTTP error body.
			out := &publishOutput{}
			out.Body = *result
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "login-status", Method: http.MethodGet, Path: "/api/v1/login-status", Summary: "Check whether the stored profile is logged in", Tags: []string{"Session"}},
		func(ctx context.Context, _ *struct{}) (*loginStatusOutput, error) {
			status, err := svc.LoginStatus(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &loginStatusOutput{}
			out.Body = status
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "list-attempts", Method: http.MethodGet, Path: "/api/v1/attempts", Summary: "List recent publish attempts", Tags: []string{"Publish"}},
		func(ctx context.Context, input *attemptsInput) (*attemptsOutput, error) {
			out := &attemptsOutput{}
			out.Body.Attempts = svc.RecentAttempts(input.Limit)
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/api/v1/health", Summary: "Liveness check", Tags: []string{"Misc"}},
		func(ctx context.Context, _ *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *cdp.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case cdp.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case cdp.CodeCaptcha:
			return huma.Error403Forbidden(coded.Message)
		case cdp.CodeEvalTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case cdp.CodeCDPUnavailable, cdp.CodeSession:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
