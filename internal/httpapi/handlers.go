package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"envirotrack/internal/core"
	"envirotrack/pkg/domain"
)

type handler struct {
	svc *core.Service
}

// RecordView pairs a record with its compliance badge.
type RecordView struct {
	Record domain.Record `json:"record"`
	Badge  core.Status   `json:"badge"`
}

// CurrentView describes the open workspace.
type CurrentView struct {
	ID        string           `json:"id"`
	Workspace domain.Workspace `json:"workspace"`
}

type importArchivedRequest struct {
	Key string `json:"key" binding:"required"`
}

func (h *handler) schemas(c *gin.Context) {
	set := h.svc.Schemas()
	out := make([]domain.ModuleSchema, 0, len(domain.CollectionKeys))
	for _, k := range domain.CollectionKeys {
		out = append(out, set[k])
	}
	success(c, out)
}

func (h *handler) fuels(c *gin.Context) {
	success(c, core.Fuels())
}

func (h *handler) combustion(c *gin.Context) {
	mmbtu, err := decimal.NewFromString(c.Query("mmbtu"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "mmbtu must be a number")
		return
	}
	fuel := c.Query("fuel")
	co2, err := core.CombustionCO2(mmbtu, fuel)
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"fuel": fuel, "mmbtu": mmbtu, "co2_mt": co2})
}

func (h *handler) listWorkspaces(c *gin.Context) {
	success(c, h.svc.Workspaces(c.Request.Context()))
}

func (h *handler) createWorkspace(c *gin.Context) {
	var p domain.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	id, err := h.svc.CreateWorkspace(c.Request.Context(), p)
	if err != nil {
		failErr(c, err)
		return
	}
	created(c, gin.H{"id": id})
}

func (h *handler) getWorkspace(c *gin.Context) {
	ws, err := h.svc.Workspace(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, ws)
}

func (h *handler) deleteWorkspace(c *gin.Context) {
	deleted, err := h.svc.DeleteWorkspace(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"deleted": deleted})
}

func (h *handler) saveProfile(c *gin.Context) {
	var p domain.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	if err := h.svc.SaveProfile(c.Request.Context(), c.Param("id"), p); err != nil {
		failErr(c, err)
		return
	}
	success(c, p)
}

func (h *handler) openWorkspace(c *gin.Context) {
	if err := h.svc.OpenWorkspace(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"id": c.Param("id")})
}

func (h *handler) closeWorkspace(c *gin.Context) {
	h.svc.CloseWorkspace(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *handler) backup(c *gin.Context) {
	data, err := h.svc.ExportBackup(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="envirotrack-%s.json"`, c.Param("id")))
	c.Data(http.StatusOK, "application/json", data)
}

func (h *handler) importWorkspace(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	id, err := h.svc.ImportWorkspace(c.Request.Context(), body)
	if err != nil {
		failErr(c, err)
		return
	}
	created(c, gin.H{"id": id})
}

func (h *handler) current(c *gin.Context) {
	id, ws, err := h.svc.Current(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, CurrentView{ID: id, Workspace: ws})
}

func (h *handler) dashboard(c *gin.Context) {
	dash, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, dash)
}

func (h *handler) listRecords(c *gin.Context) {
	key := domain.CollectionKey(c.Param("collection"))
	recs, err := h.svc.Records(c.Request.Context(), key)
	if err != nil {
		failErr(c, err)
		return
	}
	out := make([]RecordView, len(recs))
	for i, rec := range recs {
		out[i] = RecordView{Record: rec, Badge: h.svc.Badge(key, rec)}
	}
	success(c, out)
}

// bindRecord decodes a JSON object keeping numbers as json.Number.
func bindRecord(c *gin.Context) (domain.Record, bool) {
	body, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var rec domain.Record
	if err := dec.Decode(&rec); err != nil || rec == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request body must be a JSON object")
		return nil, false
	}
	return rec, true
}

func (h *handler) addRecord(c *gin.Context) {
	fields, ok := bindRecord(c)
	if !ok {
		return
	}
	rec, err := h.svc.AddRecord(c.Request.Context(), domain.CollectionKey(c.Param("collection")), fields)
	if err != nil {
		failErr(c, err)
		return
	}
	created(c, rec)
}

func (h *handler) editRecord(c *gin.Context) {
	fields, ok := bindRecord(c)
	if !ok {
		return
	}
	changed, err := h.svc.EditRecord(c.Request.Context(), domain.CollectionKey(c.Param("collection")), c.Param("rid"), fields)
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"changed": changed})
}

func (h *handler) deleteRecord(c *gin.Context) {
	deleted, err := h.svc.DeleteRecord(c.Request.Context(), domain.CollectionKey(c.Param("collection")), c.Param("rid"))
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, gin.H{"deleted": deleted})
}

func (h *handler) exportCSV(c *gin.Context) {
	key := domain.CollectionKey(c.Param("collection"))
	var buf bytes.Buffer
	if err := h.svc.ExportCSV(c.Request.Context(), &buf, key); err != nil {
		failErr(c, err)
		return
	}
	name := string(key)
	if schema, ok := h.svc.Schemas().Lookup(key); ok && schema.ExportName != "" {
		name = schema.ExportName
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, name))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *handler) archiveBackup(c *gin.Context) {
	info, err := h.svc.ArchiveBackup(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	created(c, info)
}

func (h *handler) archiveCSV(c *gin.Context) {
	info, err := h.svc.ArchiveCSV(c.Request.Context(), domain.CollectionKey(c.Param("collection")))
	if err != nil {
		failErr(c, err)
		return
	}
	created(c, info)
}

func (h *handler) listExports(c *gin.Context) {
	infos, err := h.svc.Exports(c.Request.Context(), c.Query("workspace"))
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, infos)
}

func (h *handler) importArchived(c *gin.Context) {
	var req importArchivedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	id, err := h.svc.ImportArchived(c.Request.Context(), req.Key)
	if err != nil {
		failErr(c, err)
		return
	}
	created(c, gin.H{"id": id})
}
