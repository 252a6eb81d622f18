package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/ticobot/ticobot/pkg/models"
	"github.com/ticobot/ticobot/pkg/rag"
)

// ChatHandler godoc
//
//	@Summary		Answers a question about the party platforms
//	@Description	Runs the full RAG pipeline: cache consult, retrieval,
//	@Description	generation, cache store.
//	@Tags			chat
//	@Accept			json
//	@Produce		json
//	@Param			chat	body		models.ChatRequest	true	"Chat request"
//	@Success		200		{object}	models.ChatResponse	"OK"
//	@Failure		400		{object}	APIError			"Bad Request"
//	@Failure		429		{object}	APIError			"Too Many Requests"
//	@Failure		500		{object}	APIError			"Internal Server Error"
//	@Router			/api/v1/chat [post]
func ChatHandler(appState *models.AppState, ragService *rag.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var chatRequest models.ChatRequest
		if err := decodeJSON(r, &chatRequest); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		if err := validate.Struct(chatRequest); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}

		response, err := ragService.Answer(r.Context(), &chatRequest)
		if err != nil {
			renderRequestError(w, err)
			return
		}

		if err := encodeJSON(w, response); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// ChatStreamHandler godoc
//
//	@Summary		Answers a question as a server-sent event stream
//	@Description	Emits a sources event first, then data events with answer
//	@Description	fragments, then a terminal [DONE] event. Streamed answers
//	@Description	are not cached.
//	@Tags			chat
//	@Accept			json
//	@Produce		text/event-stream
//	@Param			chat	body	models.ChatRequest	true	"Chat request"
//	@Success		200		{string}	string			"SSE stream"
//	@Failure		400		{object}	APIError		"Bad Request"
//	@Failure		404		{object}	APIError		"Not Found"
//	@Failure		500		{object}	APIError		"Internal Server Error"
//	@Router			/api/v1/chat/stream [post]
func ChatStreamHandler(appState *models.AppState, ragService *rag.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var chatRequest models.ChatRequest
		if err := decodeJSON(r, &chatRequest); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		if err := validate.Struct(chatRequest); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			renderError(
				w,
				errors.New("streaming unsupported by the underlying writer"),
				http.StatusInternalServerError,
			)
			return
		}

		stream, sources, err := ragService.AnswerStream(r.Context(), &chatRequest)
		if err != nil {
			renderRequestError(w, err)
			return
		}
		defer func() {
			if err := stream.Close(); err != nil {
				log.Warnf("error closing completion stream: %v", err)
			}
		}()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		// Sources go out before the first token so the client can render
		// attribution while the answer streams.
		if err := writeSSEEvent(w, "sources", sources); err != nil {
			log.Errorf("error writing sources event: %v", err)
			return
		}
		flusher.Flush()

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				log.Errorf("error receiving stream chunk: %v", err)
				return
			}
			if err := writeSSEEvent(w, "", chunk); err != nil {
				log.Errorf("error writing stream chunk: %v", err)
				return
			}
			flusher.Flush()
		}

		if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
			log.Errorf("error writing stream terminator: %v", err)
			return
		}
		flusher.Flush()
	}
}

func writeSSEEvent(w io.Writer, event string, data any) error {
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(w, "data: "); err != nil {
		return err
	}
	if err := encodeJSONTo(w, data); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

// SearchHandler godoc
//
//	@Summary	Searches chunks by similarity without generation
//	@Tags		search
//	@Accept		json
//	@Produce	json
//	@Param		search	body		models.SearchQuery			true	"Search query"
//	@Success	200		{object}	models.SearchResultPage	"OK"
//	@Failure	400		{object}	APIError					"Bad Request"
//	@Failure	500		{object}	APIError					"Internal Server Error"
//	@Router		/api/v1/search [post]
func SearchHandler(appState *models.AppState, ragService *rag.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var searchQuery models.SearchQuery
		if err := decodeJSON(r, &searchQuery); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		if searchQuery.Text == "" && len(searchQuery.Embedding) == 0 &&
			len(searchQuery.Metadata) == 0 {
			renderError(
				w,
				errors.New("one of text, embedding or metadata is required"),
				http.StatusBadRequest,
			)
			return
		}

		page, err := ragService.Search(r.Context(), &searchQuery)
		if err != nil {
			renderRequestError(w, err)
			return
		}

		if err := encodeJSON(w, page); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// StatsResponse is the /stats payload: the tracker snapshot plus humanized
// renderings for direct display.
type StatsResponse struct {
	models.UsageSnapshot
	TokensSavedDisplay string `json:"tokens_saved_display"`
	CostSavedDisplay   string `json:"cost_saved_display"`
}

// GetStatsHandler godoc
//
//	@Summary	Returns serialization savings statistics
//	@Tags		stats
//	@Produce	json
//	@Success	200	{object}	StatsResponse	"OK"
//	@Failure	500	{object}	APIError		"Internal Server Error"
//	@Router		/api/v1/stats [get]
func GetStatsHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := appState.UsageTracker.Snapshot()
		response := StatsResponse{
			UsageSnapshot:      snapshot,
			TokensSavedDisplay: humanize.Comma(int64(snapshot.TokensSaved)),
			CostSavedDisplay:   fmt.Sprintf("$%.4f", snapshot.EstimatedCostSaved),
		}

		if err := encodeJSON(w, response); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}
