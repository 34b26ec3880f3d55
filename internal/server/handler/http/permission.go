package http

import (
	"net/http"

	"github.com/atinyakov/PomeloX/internal/permission"
)

type permissionResponse struct {
	Scanner     permission.Level       `json:"scanner"`
	Target      permission.Level       `json:"target"`
	Permissions permission.Permissions `json:"permissions"`
	Description string                 `json:"description"`
}

// Permissions handles GET /api/permissions?scanner=&target=. Both values are
// role keys (manage, part_manage, staff, common) or level numbers 0-4.
func Permissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scanner, ok := permission.Parse(q.Get("scanner"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid scanner level"})
		return
	}
	target, ok := permission.Parse(q.Get("target"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid target level"})
		return
	}
	p := permission.Calculate(scanner, target)
	writeJSON(w, http.StatusOK, permissionResponse{
		Scanner:     scanner,
		Target:      target,
		Permissions: p,
		Description: permission.Description(p),
	})
}
