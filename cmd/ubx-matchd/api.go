package main

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/ubx/internal/common/httputil"
	"github.com/edgecomet/ubx/internal/common/requestid"
	"github.com/edgecomet/ubx/internal/ubx/compiler"
	"github.com/edgecomet/ubx/internal/ubx/engine"
	"github.com/edgecomet/ubx/internal/ubx/matcher"
)

// matchDaemon wires an Engine up to the external API (spec.md §6).
type matchDaemon struct {
	engine *engine.Engine
	logger *zap.Logger
}

func (d *matchDaemon) ServeHTTP(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case method == fasthttp.MethodPost && path == "/match/request":
		d.handleMatchRequest(ctx)
	case method == fasthttp.MethodPost && path == "/match/response-headers":
		d.handleMatchResponseHeaders(ctx)
	case method == fasthttp.MethodPost && path == "/match/cosmetics":
		d.handleMatchCosmetics(ctx)
	case method == fasthttp.MethodPost && path == "/compile":
		d.handleCompile(ctx)
	case method == fasthttp.MethodGet && path == "/info":
		d.handleInfo(ctx)
	default:
		httputil.JSONError(ctx, "not found", fasthttp.StatusNotFound)
	}
}

type matchRequestBody struct {
	URL         string `json:"url"`
	Type        string `json:"type"`
	Initiator   string `json:"initiator"`
	TabID       int64  `json:"tab_id"`
	FrameID     int64  `json:"frame_id"`
	RequestID   string `json:"request_id"`
	IsMainFrame bool   `json:"is_main_frame"`
}

type decisionResponse struct {
	Kind         string `json:"kind"`
	RuleID       uint32 `json:"rule_id,omitempty"`
	ListID       uint16 `json:"list_id,omitempty"`
	RedirectURL  string `json:"redirect_url,omitempty"`
	SanitizedURL string `json:"sanitized_url,omitempty"`
}

func decisionKindName(k matcher.DecisionKind) string {
	switch k {
	case matcher.DecisionBlock:
		return "block"
	case matcher.DecisionRedirect:
		return "redirect"
	case matcher.DecisionRemoveparam:
		return "removeparam"
	default:
		return "allow"
	}
}

func toDecisionResponse(d matcher.Decision) decisionResponse {
	resp := decisionResponse{
		Kind:   decisionKindName(d.Kind),
		RuleID: d.RuleID,
		ListID: d.ListID,
	}
	if d.Kind == matcher.DecisionRedirect {
		resp.RedirectURL = d.RedirectURL
	}
	if d.Kind == matcher.DecisionRemoveparam {
		resp.SanitizedURL = d.RedirectURL
	}
	return resp
}

// handleMatchRequest implements POST /match/request (spec.md §6
// match_request): classify one network request against the live snapshot.
func (d *matchDaemon) handleMatchRequest(ctx *fasthttp.RequestCtx) {
	var body matchRequestBody
	if err := json.Unmarshal(ctx.Request.Body(), &body); err != nil {
		httputil.JSONError(ctx, "invalid json: "+err.Error(), fasthttp.StatusBadRequest)
		return
	}
	if body.URL == "" {
		httputil.JSONError(ctx, "url is required", fasthttp.StatusBadRequest)
		return
	}
	if body.RequestID == "" {
		body.RequestID = requestid.GenerateRequestID("")
	}

	req := matcher.Request{
		URL:       body.URL,
		Type:      matcher.TypeFromName(body.Type),
		Initiator: body.Initiator,
		TabID:     body.TabID,
		FrameID:   body.FrameID,
		RequestID: body.RequestID,
	}
	decision := d.engine.MatchRequest(req, body.IsMainFrame)
	httputil.JSONData(ctx, toDecisionResponse(decision), fasthttp.StatusOK)
}

type headerPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type matchResponseHeadersBody struct {
	matchRequestBody
	Headers []headerPair `json:"headers"`
}

type responseHeaderResponse struct {
	Decision      decisionResponse `json:"decision"`
	RemoveHeaders []string         `json:"remove_headers"`
	InjectCSP     []string         `json:"inject_csp"`
}

// handleMatchResponseHeaders implements POST /match/response-headers
// (spec.md §6 match_response_headers).
func (d *matchDaemon) handleMatchResponseHeaders(ctx *fasthttp.RequestCtx) {
	var body matchResponseHeadersBody
	if err := json.Unmarshal(ctx.Request.Body(), &body); err != nil {
		httputil.JSONError(ctx, "invalid json: "+err.Error(), fasthttp.StatusBadRequest)
		return
	}
	if body.URL == "" {
		httputil.JSONError(ctx, "url is required", fasthttp.StatusBadRequest)
		return
	}
	if body.RequestID == "" {
		body.RequestID = requestid.GenerateRequestID("")
	}

	req := matcher.Request{
		URL:       body.URL,
		Type:      matcher.TypeFromName(body.Type),
		Initiator: body.Initiator,
		TabID:     body.TabID,
		FrameID:   body.FrameID,
		RequestID: body.RequestID,
	}
	headers := make([]matcher.Header, 0, len(body.Headers))
	for _, h := range body.Headers {
		headers = append(headers, matcher.Header{Name: h.Name, Value: h.Value})
	}

	result := d.engine.MatchResponseHeaders(req, headers, body.IsMainFrame)
	httputil.JSONData(ctx, responseHeaderResponse{
		Decision:      toDecisionResponse(result.Decision),
		RemoveHeaders: result.RemoveHeaders,
		InjectCSP:     result.InjectCSP,
	}, fasthttp.StatusOK)
}

type matchCosmeticsBody struct {
	Host          string `json:"host"`
	EnableGeneric bool   `json:"enable_generic"`
}

type scriptletCallResponse struct {
	Name string   `json:"name"`
	Args []string `json:"args"`
}

type cosmeticsResponse struct {
	Selectors  []string                `json:"selectors"`
	Scriptlets []scriptletCallResponse `json:"scriptlets"`
}

// handleMatchCosmetics implements POST /match/cosmetics (spec.md §6
// match_cosmetics).
func (d *matchDaemon) handleMatchCosmetics(ctx *fasthttp.RequestCtx) {
	var body matchCosmeticsBody
	if err := json.Unmarshal(ctx.Request.Body(), &body); err != nil {
		httputil.JSONError(ctx, "invalid json: "+err.Error(), fasthttp.StatusBadRequest)
		return
	}
	if body.Host == "" {
		httputil.JSONError(ctx, "host is required", fasthttp.StatusBadRequest)
		return
	}

	result, err := d.engine.MatchCosmetics(body.Host, body.EnableGeneric)
	if err != nil {
		d.logger.Warn("match_cosmetics failed", zap.String("host", body.Host), zap.Error(err))
		httputil.JSONError(ctx, "internal error", fasthttp.StatusInternalServerError)
		return
	}

	scriptlets := make([]scriptletCallResponse, 0, len(result.Scriptlets))
	for _, s := range result.Scriptlets {
		scriptlets = append(scriptlets, scriptletCallResponse{Name: s.Name, Args: s.Args})
	}
	httputil.JSONData(ctx, cosmeticsResponse{
		Selectors:  result.Selectors,
		Scriptlets: scriptlets,
	}, fasthttp.StatusOK)
}

type compileBody struct {
	Lists   []string `json:"lists"`
	BuildID uint32   `json:"build_id"`
}

type compileResponse struct {
	SnapshotBytes int            `json:"snapshot_bytes"`
	Stats         compiler.Stats `json:"stats"`
}

// handleCompile implements POST /compile (spec.md §6 compile_filter_lists).
// It returns statistics and the snapshot size but not the snapshot bytes
// themselves; installing a new snapshot is a separate, explicit operator
// action (ubx-compile writes a file, an operator or rollout job calls
// Engine.Load), keeping compile and install independently auditable.
func (d *matchDaemon) handleCompile(ctx *fasthttp.RequestCtx) {
	var body compileBody
	if err := json.Unmarshal(ctx.Request.Body(), &body); err != nil {
		httputil.JSONError(ctx, "invalid json: "+err.Error(), fasthttp.StatusBadRequest)
		return
	}
	if len(body.Lists) == 0 {
		httputil.JSONError(ctx, "lists must not be empty", fasthttp.StatusBadRequest)
		return
	}

	opts := compiler.DefaultOptions()
	opts.BuildID = body.BuildID
	result, err := d.engine.CompileFilterLists(body.Lists, opts)
	if err != nil {
		d.logger.Warn("compile_filter_lists failed", zap.Error(err))
		httputil.JSONError(ctx, "compile failed: "+err.Error(), fasthttp.StatusUnprocessableEntity)
		return
	}

	httputil.JSONData(ctx, compileResponse{
		SnapshotBytes: len(result.SnapshotBytes),
		Stats:         result.Stats,
	}, fasthttp.StatusOK)
}

// handleInfo implements GET /info (spec.md §6 get_snapshot_info).
func (d *matchDaemon) handleInfo(ctx *fasthttp.RequestCtx) {
	info := d.engine.GetSnapshotInfo()
	httputil.JSONData(ctx, info, fasthttp.StatusOK)
}
