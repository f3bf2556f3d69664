package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/thoughtchain/internal/dispatch"
)

// respond writes resp with a status derived from its failure code.
func respond(w http.ResponseWriter, resp dispatch.Response) {
	writeJSON(w, statusFor(resp, http.StatusInternalServerError), resp)
}

// respondGenerated is used for summary endpoints, where a failed generation
// still produced a stored placeholder the client can show.
func respondGenerated(w http.ResponseWriter, resp dispatch.Response) {
	writeJSON(w, statusFor(resp, http.StatusOK), resp)
}

func statusFor(resp dispatch.Response, failed int) int {
	if resp.Success {
		return http.StatusOK
	}
	switch resp.Code {
	case dispatch.CodeInvalidRequest:
		return http.StatusBadRequest
	case dispatch.CodeNotFound:
		return http.StatusNotFound
	default:
		return failed
	}
}

func run(deps Deps, w http.ResponseWriter, r *http.Request, req dispatch.Request) {
	respond(w, deps.Dispatcher.Dispatch(r.Context(), req))
}

func handleGetAllChains(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run(deps, w, r, dispatch.Request{Action: dispatch.ActionGetAllChains})
	}
}

func handleRecentChains(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run(deps, w, r, dispatch.Request{
			Action: dispatch.ActionGetRecentChains,
			Limit:  parseIntParam(r, "limit", 0, 100),
		})
	}
}

func handleGetActiveChain(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run(deps, w, r, dispatch.Request{Action: dispatch.ActionGetActiveChain})
	}
}

func handleSetActiveChain(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ChainID string `json:"chainId"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		run(deps, w, r, dispatch.Request{Action: dispatch.ActionSetActiveChain, ChainID: body.ChainID})
	}
}

func handleSplit(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run(deps, w, r, dispatch.Request{Action: dispatch.ActionManualSplitChain})
	}
}

func handleGetChain(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run(deps, w, r, dispatch.Request{Action: dispatch.ActionGetChain, ChainID: chi.URLParam(r, "id")})
	}
}

func handleRenameChain(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name string `json:"name"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		run(deps, w, r, dispatch.Request{
			Action:  dispatch.ActionUpdateChainName,
			ChainID: chi.URLParam(r, "id"),
			NewName: body.Name,
		})
	}
}

func handleDeleteChain(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run(deps, w, r, dispatch.Request{Action: dispatch.ActionDeleteChain, ChainID: chi.URLParam(r, "id")})
	}
}

func handleAddNode(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var node dispatch.NodeInput
		if !decodeBody(w, r, &node) {
			return
		}
		run(deps, w, r, dispatch.Request{
			Action:  dispatch.ActionAddNode,
			ChainID: chi.URLParam(r, "id"),
			Node:    &node,
		})
	}
}

func handleGetReport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run(deps, w, r, dispatch.Request{Action: dispatch.ActionGetChainSummaryDoc, ChainID: chi.URLParam(r, "id")})
	}
}

func handleRequestReport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Guidance string `json:"guidance"`
		}
		if r.ContentLength != 0 && !decodeBody(w, r, &body) {
			return
		}
		respondGenerated(w, deps.Dispatcher.Dispatch(r.Context(), dispatch.Request{
			Action:       dispatch.ActionRequestChainSummary,
			ChainID:      chi.URLParam(r, "id"),
			CustomPrompt: body.Guidance,
		}))
	}
}

func handleGetNode(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run(deps, w, r, dispatch.Request{
			Action:  dispatch.ActionGetNode,
			ChainID: chi.URLParam(r, "id"),
			NodeID:  chi.URLParam(r, "nodeID"),
		})
	}
}

// handlePatchNode updates notes and/or position. Both are applied in that
// order; the first failure stops the request.
func handlePatchNode(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Notes    *string `json:"notes"`
			Position *int    `json:"position"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if body.Notes == nil && body.Position == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "notes or position is required")
			return
		}

		base := dispatch.Request{ChainID: chi.URLParam(r, "id"), NodeID: chi.URLParam(r, "nodeID")}
		var resp dispatch.Response
		if body.Notes != nil {
			req := base
			req.Action = dispatch.ActionUpdateNodeNotes
			req.Notes = body.Notes
			if resp = deps.Dispatcher.Dispatch(r.Context(), req); !resp.Success {
				respond(w, resp)
				return
			}
		}
		if body.Position != nil {
			req := base
			req.Action = dispatch.ActionReorderNodes
			req.NewPosition = body.Position
			resp = deps.Dispatcher.Dispatch(r.Context(), req)
		}
		respond(w, resp)
	}
}

func handleRemoveNode(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run(deps, w, r, dispatch.Request{
			Action:  dispatch.ActionRemoveNode,
			ChainID: chi.URLParam(r, "id"),
			NodeID:  chi.URLParam(r, "nodeID"),
		})
	}
}

func handleRegenerateSummary(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondGenerated(w, deps.Dispatcher.Dispatch(r.Context(), dispatch.Request{
			Action:  dispatch.ActionRegenerateNodeSummary,
			ChainID: chi.URLParam(r, "id"),
			NodeID:  chi.URLParam(r, "nodeID"),
		}))
	}
}

func handleRecentNodes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run(deps, w, r, dispatch.Request{
			Action: dispatch.ActionGetRecentNodes,
			Limit:  parseIntParam(r, "limit", 0, 100),
		})
	}
}

func handleExtract(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			URL string `json:"url"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		resp := deps.Dispatcher.Dispatch(r.Context(), dispatch.Request{Action: dispatch.ActionExtractContent, URL: body.URL})
		writeJSON(w, statusFor(resp, http.StatusBadGateway), resp)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
