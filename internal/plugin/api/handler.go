package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/gorilla/schema"
	"github.com/haveachin/floodgate/internal/app/floodgate"
	"github.com/haveachin/floodgate/pkg/floodgate/envelope"
)

var (
	errNotEncryptedData = errors.New("data is not encrypted data")
	errNoEncryptedData  = errors.New("no encrypted data stored for this uuid")
	errNoPrivateKey     = errors.New("no private key configured")
)

// statusError is answered with status instead of 500.
type statusError struct {
	status int
	err    error
}

func (e statusError) Error() string { return e.err.Error() }

func (e statusError) Unwrap() error { return e.err }

func withStatus(status int, err error) error {
	return statusError{status: status, err: err}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var se statusError
	if errors.As(err, &se) {
		status = se.status
	}
	http.Error(w, err.Error(), status)
}

// uuidHandler handles the routes below /encrypted-data/{uuid}.
type uuidHandler func(w http.ResponseWriter, r *http.Request, id uuid.UUID) error

func (h uuidHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		writeError(w, withStatus(http.StatusUnprocessableEntity, err))
		return
	}

	if err := h(w, r, id); err != nil {
		writeError(w, err)
	}
}

func healthHandler(api floodgate.PluginAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, struct {
			Status      string `json:"status"`
			Connections int64  `json:"connections"`
		}{
			Status:      "ok",
			Connections: api.ActiveConns(),
		})
	}
}

type encryptedDataDTO struct {
	UUID string `json:"uuid"`
	Data string `json:"data"`
}

func (dto *encryptedDataDTO) Bind(*http.Request) error {
	if !envelope.IsEnvelope(dto.Data) {
		return errNotEncryptedData
	}
	return nil
}

// storedEnvelope returns the envelope stored for id or a 404 error.
func storedEnvelope(r *http.Request, api floodgate.PluginAPI, id uuid.UUID) (envelope.Envelope, error) {
	env, ok, err := api.Relay().Get(r.Context(), id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", withStatus(http.StatusNotFound, errNoEncryptedData)
	}
	return env, nil
}

func getEncryptedDataHandler(api floodgate.PluginAPI) uuidHandler {
	return func(w http.ResponseWriter, r *http.Request, id uuid.UUID) error {
		env, err := storedEnvelope(r, api, id)
		if err != nil {
			return err
		}

		render.JSON(w, r, encryptedDataDTO{
			UUID: id.String(),
			Data: env.String(),
		})
		return nil
	}
}

func putEncryptedDataHandler(api floodgate.PluginAPI) uuidHandler {
	return func(w http.ResponseWriter, r *http.Request, id uuid.UUID) error {
		var dto encryptedDataDTO
		if err := render.Bind(r, &dto); err != nil {
			return withStatus(http.StatusUnprocessableEntity, err)
		}

		if err := api.Relay().Put(r.Context(), id, envelope.Envelope(dto.Data)); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
}

func deleteEncryptedDataHandler(api floodgate.PluginAPI) uuidHandler {
	return func(w http.ResponseWriter, r *http.Request, id uuid.UUID) error {
		if err := api.Relay().Remove(r.Context(), id); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
}

// refreshEncryptedDataHandler reseals the encrypted data stored under the
// path uuid with the private key of this hop and keeps it under that uuid.
func refreshEncryptedDataHandler(api floodgate.PluginAPI) uuidHandler {
	return func(w http.ResponseWriter, r *http.Request, id uuid.UUID) error {
		relayAPI := api.Relay()
		if relayAPI.Sealer == nil {
			return withStatus(http.StatusNotImplemented, errNoPrivateKey)
		}

		env, err := storedEnvelope(r, api, id)
		if err != nil {
			return err
		}

		player, err := api.Opener().Open(env)
		if err != nil {
			return withStatus(http.StatusUnprocessableEntity, err)
		}

		if err := relayAPI.Refresh(r.Context(), id, player); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
}

type playersQuery struct {
	UsernameRegex string `schema:"usernameRegex"`
	Edition       string `schema:"edition"`
}

func getPlayersHandler(players *players) http.HandlerFunc {
	decoder := schema.NewDecoder()
	return func(w http.ResponseWriter, r *http.Request) {
		var q playersQuery
		if err := decoder.Decode(&q, r.URL.Query()); err != nil {
			writeError(w, withStatus(http.StatusUnprocessableEntity, err))
			return
		}

		pp, err := players.find(q.UsernameRegex, q.Edition)
		if err != nil {
			writeError(w, withStatus(http.StatusBadRequest, err))
			return
		}
		render.JSON(w, r, pp)
	}
}
