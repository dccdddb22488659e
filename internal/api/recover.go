package api

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/MrWong99/voicenav/internal/intent"
	"github.com/MrWong99/voicenav/internal/observe"
)

type panicResponse struct {
	Status string        `json:"status"`
	Action intent.Action `json:"action"`
	Error  string        `json:"error"`
}

// Recover turns a handler panic into a 500 carrying an unknown action, so
// voice clients always receive a well-formed reply.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			observe.Logger(r.Context()).Error("api: handler panic",
				"path", r.URL.Path, "panic", fmt.Sprint(v), "stack", string(debug.Stack()))
			writeJSON(w, http.StatusInternalServerError, panicResponse{
				Status: "error",
				Action: intent.Action{Kind: intent.KindUnknown},
				Error:  "internal error",
			})
		}()
		next.ServeHTTP(w, r)
	})
}
