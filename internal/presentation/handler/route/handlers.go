package route

import (
	"net/http"

	"github.com/hilthontt/convoy/internal/infrastructure/json"
	"github.com/hilthontt/convoy/internal/infrastructure/routing"
)

type Handler struct {
	gateway routing.Querier
}

func NewHandler(gateway routing.Querier) *Handler {
	return &Handler{gateway: gateway}
}

// GetRouteHandler proxies one directional route query:
// GET /api/route?from=<lat,lon>&to=<lat,lon>.
// The body is always {ok,...}; the status follows the result kind.
func (h *Handler) GetRouteHandler(w http.ResponseWriter, r *http.Request) {
	from, fromErr := routing.ParseCoordinate(r.URL.Query().Get("from"))
	to, toErr := routing.ParseCoordinate(r.URL.Query().Get("to"))
	if fromErr != nil || toErr != nil {
		res := routing.Failure(routing.KindBadRequest, routing.ReasonInvalidCoordinates)
		json.Write(w, res.Kind.Status(), res)
		return
	}

	res := h.gateway.Query(r.Context(), from, to)
	w.Header().Set("Cache-Control", "no-store")
	json.Write(w, res.Kind.Status(), res)
}
