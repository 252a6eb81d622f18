package server

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ticobot/ticobot/pkg/ingest"
	"github.com/ticobot/ticobot/pkg/models"
)

var validate = validator.New()

// CreateDocumentHandler godoc
//
//	@Summary		Ingests a new document
//	@Description	Splits the document into chunks, persists them and embeds
//	@Description	them inline or via the task queue depending on config.
//	@Tags			document
//	@Accept			json
//	@Produce		json
//	@Param			document	body		models.CreateDocumentRequest	true	"Document"
//	@Success		201			{object}	models.CreateDocumentResponse	"Created"
//	@Failure		400			{object}	APIError						"Bad Request"
//	@Failure		500			{object}	APIError						"Internal Server Error"
//	@Router			/api/v1/documents [post]
func CreateDocumentHandler(appState *models.AppState) http.HandlerFunc {
	ingestService := ingest.NewService(appState)
	return func(w http.ResponseWriter, r *http.Request) {
		var documentRequest models.CreateDocumentRequest
		if err := decodeJSON(r, &documentRequest); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		if err := validate.Struct(documentRequest); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}

		response, err := ingestService.IngestDocument(r.Context(), &documentRequest)
		if err != nil {
			renderRequestError(w, err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		if err := encodeJSON(w, response); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// GetDocumentHandler godoc
//
//	@Summary	Returns a document by UUID
//	@Tags		document
//	@Produce	json
//	@Param		documentUUID	path		string			true	"UUID of the document"
//	@Success	200				{object}	models.Document	"OK"
//	@Failure	400				{object}	APIError		"Bad Request"
//	@Failure	404				{object}	APIError		"Not Found"
//	@Failure	500				{object}	APIError		"Internal Server Error"
//	@Router		/api/v1/documents/{documentUUID} [get]
func GetDocumentHandler(appState *models.AppState) http.HandlerFunc {
	store := appState.DocumentStore
	return func(w http.ResponseWriter, r *http.Request) {
		documentUUID := parseUUIDFromURL(r, w, "documentUUID")
		if documentUUID == uuid.Nil {
			return
		}

		document, err := store.GetDocument(r.Context(), documentUUID)
		if err != nil {
			renderRequestError(w, err)
			return
		}

		if err := encodeJSON(w, document); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// GetDocumentListHandler godoc
//
//	@Summary	Returns a paginated list of documents
//	@Tags		document
//	@Produce	json
//	@Param		party		query		string						false	"Restrict to one party"
//	@Param		page_number	query		integer						false	"Page number, starting at 1"
//	@Param		page_size	query		integer						false	"Results per page"
//	@Success	200			{object}	models.DocumentListResponse	"OK"
//	@Failure	400			{object}	APIError					"Bad Request"
//	@Failure	500			{object}	APIError					"Internal Server Error"
//	@Router		/api/v1/documents [get]
func GetDocumentListHandler(appState *models.AppState) http.HandlerFunc {
	store := appState.DocumentStore
	return func(w http.ResponseWriter, r *http.Request) {
		party := r.URL.Query().Get("party")
		pageNumber, err := extractQueryStringValueToInt(r, "page_number")
		if err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		pageSize, err := extractQueryStringValueToInt(r, "page_size")
		if err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}

		documents, err := store.GetDocumentList(r.Context(), party, pageNumber, pageSize)
		if err != nil {
			renderRequestError(w, err)
			return
		}

		if err := encodeJSON(w, documents); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// UpdateDocumentHandler godoc
//
//	@Summary		Updates document provenance fields
//	@Description	Metadata, when present, is merged into the stored metadata.
//	@Tags			document
//	@Accept			json
//	@Produce		json
//	@Param			documentUUID	path		string							true	"UUID of the document"
//	@Param			document		body		models.UpdateDocumentRequest	true	"Document"
//	@Success		200				{object}	models.Document					"OK"
//	@Failure		400				{object}	APIError						"Bad Request"
//	@Failure		404				{object}	APIError						"Not Found"
//	@Failure		500				{object}	APIError						"Internal Server Error"
//	@Router			/api/v1/documents/{documentUUID} [patch]
func UpdateDocumentHandler(appState *models.AppState) http.HandlerFunc {
	store := appState.DocumentStore
	return func(w http.ResponseWriter, r *http.Request) {
		documentUUID := parseUUIDFromURL(r, w, "documentUUID")
		if documentUUID == uuid.Nil {
			return
		}

		var updateRequest models.UpdateDocumentRequest
		if err := decodeJSON(r, &updateRequest); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		updateRequest.UUID = documentUUID
		if err := validate.Struct(updateRequest); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}

		document, err := store.UpdateDocument(r.Context(), &updateRequest)
		if err != nil {
			renderRequestError(w, err)
			return
		}

		if err := encodeJSON(w, document); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// DeleteDocumentHandler godoc
//
//	@Summary		Deletes a document and its chunks
//	@Description	Rows are soft-deleted and hard-deleted later by the purge
//	@Description	processor. Embeddings are removed from search immediately.
//	@Tags			document
//	@Produce		json
//	@Param			documentUUID	path		string		true	"UUID of the document"
//	@Success		200				{object}	string		"OK"
//	@Failure		400				{object}	APIError	"Bad Request"
//	@Failure		404				{object}	APIError	"Not Found"
//	@Failure		500				{object}	APIError	"Internal Server Error"
//	@Router			/api/v1/documents/{documentUUID} [delete]
func DeleteDocumentHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentUUID := parseUUIDFromURL(r, w, "documentUUID")
		if documentUUID == uuid.Nil {
			return
		}

		if err := appState.VectorStore.DeleteByDocument(r.Context(), documentUUID); err != nil {
			renderRequestError(w, err)
			return
		}
		if err := appState.DocumentStore.DeleteDocument(r.Context(), documentUUID); err != nil {
			renderRequestError(w, err)
			return
		}

		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(OKResponse)); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}
