package shared

import (
	"net/http"

	"github.com/gatepass-erp/gatepass-erp/internal/platform/httpx"
)

// RespondError maps the masterdata error taxonomy onto problem
// responses through the shared httpx switch.
func RespondError(w http.ResponseWriter, err error) {
	httpx.RespondError(w, err)
}
