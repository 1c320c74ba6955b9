package mirror

import (
	"fmt"

	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// RestResponse is the response when returning rest requests.
type RestResponse struct {
	Response any    `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
	Success  bool   `json:"success"`
}

// StatusResponse describes the client in the status endpoint.
type StatusResponse struct {
	State     string      `json:"state"`
	Heartbeat string      `json:"heartbeat"`
	SessionID string      `json:"session_id,omitempty"`
	Counts    StateCounts `json:"counts"`
	Sequence  uint64      `json:"sequence"`
	Events    int64       `json:"events_per_minute"`
	Ready     bool        `json:"ready"`
}

// API serves the status and metrics endpoints of a client.
type API struct {
	Logger zerolog.Logger

	client *Client
	router *router.Router
}

func NewAPI(logger zerolog.Logger, client *Client) *API {
	api := &API{
		Logger: logger,
		client: client,
		router: router.New(),
	}

	api.router.GET("/api/status", api.StatusEndpoint)
	api.router.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))

	return api
}

// Handler returns the request handler with access logging.
func (api *API) Handler() fasthttp.RequestHandler {
	handler := api.router.Handler

	return func(ctx *fasthttp.RequestCtx) {
		handler(ctx)

		api.Logger.Debug().Msgf("%s %s %s %d",
			ctx.RemoteAddr(),
			ctx.Request.Header.Method(),
			ctx.Request.URI().Path(),
			ctx.Response.StatusCode())
	}
}

func (api *API) ListenAndServe(host string) error {
	api.Logger.Info().Msgf("Serving http at %s", host)

	err := fasthttp.ListenAndServe(host, api.Handler())
	if err != nil {
		return fmt.Errorf("failed to serve webserver: %w", err)
	}

	return nil
}

func (api *API) StatusEndpoint(ctx *fasthttp.RequestCtx) {
	connection := api.client.Connection()
	session := connection.Session()

	writeResponse(ctx, fasthttp.StatusOK, RestResponse{
		Success: true,
		Response: StatusResponse{
			State:     connection.State().String(),
			Heartbeat: connection.HeartbeatState().String(),
			SessionID: session.SessionID,
			Sequence:  session.LastSequence,
			Ready:     api.client.IsReady(),
			Counts:    api.client.State().Counts(),
			Events:    api.client.EventsPerMinute(),
		},
	})
}

func writeResponse(ctx *fasthttp.RequestCtx, statusCode int, response RestResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)

		return
	}

	ctx.SetContentType("application/json;charset=UTF-8")
	ctx.SetStatusCode(statusCode)
	ctx.SetBody(data)
}
