package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/venpus/labsemble-v1-1-sub002/config"
	"github.com/venpus/labsemble-v1-1-sub002/engine"
	"github.com/venpus/labsemble-v1-1-sub002/middlewares"
	"github.com/venpus/labsemble-v1-1-sub002/models"
	"github.com/venpus/labsemble-v1-1-sub002/utils"
)

// api owns the per-project edit sessions. Delivery edits are optimistic: the
// handler answers with the recomputed working snapshot immediately and a
// debounced background flusher persists the full snapshot once the burst of
// keystrokes goes quiet. Payment saves flush synchronously.
type api struct {
	logger   *logrus.Logger
	clock    engine.Clock
	registry *engine.Registry

	mu        sync.Mutex
	debounces map[int]*engine.Debouncer
	quiet     time.Duration
}

func newApi(logger *logrus.Logger, clock engine.Clock) *api {
	quiet := 500 * time.Millisecond
	if v := os.Getenv("EDIT_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			quiet = time.Duration(n) * time.Millisecond
		}
	}
	gateway := models.NewSnapshotGateway(logger)
	return &api{
		logger:    logger,
		clock:     clock,
		registry:  engine.NewRegistry(gateway, logger, clock),
		debounces: make(map[int]*engine.Debouncer),
		quiet:     quiet,
	}
}

func (a *api) registerRoutes(r *gin.Engine) {
	r.POST("/login", a.login)
	r.POST("/logout", a.logout)
	r.POST("/users", a.createUser)

	r.GET("/projects", a.listProjects)
	r.POST("/projects", a.createProject)
	r.GET("/projects/:id", a.getProject)
	r.DELETE("/projects/:id", a.deleteProject)

	r.PATCH("/projects/:id/delivery", a.patchDelivery)
	r.PUT("/projects/:id/payment", a.putPayment)
	r.POST("/projects/:id/reconcile", a.forceReconcile)

	r.POST("/projects/:id/warehouse-entries", a.createWarehouseEntry)
	r.PUT("/warehouse-entries/:id/quantity", a.setEntryQuantity)
	r.DELETE("/warehouse-entries/:id", a.deleteWarehouseEntry)

	r.GET("/projects/:id/supplier-ledger", a.getSupplierLedger)
	r.PUT("/projects/:id/supplier-ledger", a.putSupplierLedger)

	r.GET("/projects/:id/packing-list", a.packingList)

	// Ops tooling: JWT only, no interactive session.
	r.POST("/internal/ops/flush", a.opsFlush)
}

// opsFlush persists every dirty edit session immediately, bypassing the
// debounce window. Used before maintenance windows and by ops tooling.
func (a *api) opsFlush(c *gin.Context) {
	claim := middlewares.CtxValue(c.Request.Context())
	if claim == nil || claim.Role != string(models.UserRoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin token required"})
		return
	}
	a.flushAll(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func respondError(c *gin.Context, err error) {
	switch {
	case err == utils.ErrorRecordNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case utils.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case utils.IsAuthError(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case utils.IsStaleWriteError(err):
		// The local state was rolled back to the winning write; the client
		// re-reads to pick it up.
		c.JSON(http.StatusConflict, gin.H{"error": "superseded by a newer write"})
	case utils.IsTransportError(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": "persistence unavailable; changes were reverted"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// auth

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *api) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	info, err := models.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

func (a *api) logout(c *gin.Context) {
	ok, err := models.Logout(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": ok})
}

func (a *api) createUser(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := models.GetSessionUser(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	if user.Role != models.UserRoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return
	}
	var input models.NewUser
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	created, err := models.CreateUser(ctx, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	created.PrepareGive()
	c.JSON(http.StatusCreated, created)
}

// projects

func (a *api) listProjects(c *gin.Context) {
	ctx := c.Request.Context()
	ctx, span := tracer.Start(ctx, "listProjects")
	defer span.End()

	projects, err := models.ListProjects(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	today := a.clock.Now()
	views := make([]engine.ProjectSnapshot, 0, len(projects))
	for _, p := range projects {
		snap, err := models.LoadSnapshot(ctx, p.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		engine.Recompute(&snap, today)
		views = append(views, snap)
	}
	c.JSON(http.StatusOK, views)
}

func (a *api) createProject(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := models.RequirePrivileged(ctx); err != nil {
		respondError(c, err)
		return
	}
	var input models.NewProject
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	project, err := models.CreateProject(ctx, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (a *api) getProject(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// Prefer the live session's working snapshot so a client polling during
	// an edit burst sees its own optimistic state. Reads never open a
	// session of their own.
	if rec := a.registry.Peek(id); rec != nil {
		snap := rec.Store().RecomputeWorking(a.clock.Now())
		c.JSON(http.StatusOK, gin.H{
			"snapshot": snap,
			"state":    rec.State(),
		})
		return
	}
	snap, err := models.LoadSnapshot(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	engine.Recompute(&snap, a.clock.Now())
	c.JSON(http.StatusOK, gin.H{
		"snapshot": snap,
		"state":    engine.StateClean,
	})
}

func (a *api) deleteProject(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := models.CanMutateProject(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	project, err := models.DeleteProject(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	a.registry.Invalidate(id)
	c.JSON(http.StatusOK, project)
}

// delivery edits

type deliveryPatch struct {
	OrderCompleted      *bool            `json:"order_completed"`
	ActualOrderDate     *time.Time       `json:"actual_order_date"`
	ClearOrderDate      bool             `json:"clear_order_date"`
	FactoryLeadTimeDays *int             `json:"factory_lead_time_days"`
	ActualShipDate      *time.Time       `json:"actual_ship_date"`
	ClearShipDate       bool             `json:"clear_ship_date"`
	OrderedQuantity     *int             `json:"ordered_quantity"`
	UnitPrice           *decimal.Decimal `json:"unit_price"`
}

func (p *deliveryPatch) edits() []engine.FieldEdit {
	var edits []engine.FieldEdit
	if p.OrderCompleted != nil {
		edits = append(edits, engine.FieldEdit{Field: engine.FieldOrderCompleted, Value: *p.OrderCompleted})
	}
	if p.ClearOrderDate {
		edits = append(edits, engine.FieldEdit{Field: engine.FieldActualOrderDate, Value: nil})
	} else if p.ActualOrderDate != nil {
		edits = append(edits, engine.FieldEdit{Field: engine.FieldActualOrderDate, Value: p.ActualOrderDate})
	}
	if p.FactoryLeadTimeDays != nil {
		edits = append(edits, engine.FieldEdit{Field: engine.FieldFactoryLeadTimeDays, Value: *p.FactoryLeadTimeDays})
	}
	if p.ClearShipDate {
		edits = append(edits, engine.FieldEdit{Field: engine.FieldActualShipDate, Value: nil})
	} else if p.ActualShipDate != nil {
		edits = append(edits, engine.FieldEdit{Field: engine.FieldActualShipDate, Value: p.ActualShipDate})
	}
	if p.OrderedQuantity != nil {
		edits = append(edits, engine.FieldEdit{Field: engine.FieldOrderedQuantity, Value: *p.OrderedQuantity})
	}
	if p.UnitPrice != nil {
		edits = append(edits, engine.FieldEdit{Field: engine.FieldUnitPrice, Value: *p.UnitPrice})
	}
	return edits
}

// patchDelivery applies the edits locally, answers with the recomputed
// working snapshot and leaves persistence to the debounced flusher.
func (a *api) patchDelivery(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := models.CanMutateProject(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	var patch deliveryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	edits := patch.edits()
	if len(edits) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no editable fields in request"})
		return
	}

	rec, err := a.registry.Session(ctx, id, models.LoadSnapshot)
	if err != nil {
		respondError(c, err)
		return
	}
	for _, e := range edits {
		if err := rec.Edit(e); err != nil {
			respondError(c, err)
			return
		}
	}
	a.debouncer(id).Trigger()

	snap := rec.Store().RecomputeWorking(a.clock.Now())
	c.JSON(http.StatusOK, gin.H{
		"snapshot": snap,
		"state":    rec.State(),
	})
}

// payments

type paymentPut struct {
	FeeRatePercent     *int               `json:"fee_rate_percent"`
	ShippingCost       *decimal.Decimal   `json:"shipping_cost"`
	CostItems          *[]engine.CostItem `json:"cost_items"`
	AdvancePaid        *bool              `json:"advance_paid"`
	BalancePaid        *bool              `json:"balance_paid"`
	TotalPaid          *bool              `json:"total_paid"`
	AdvancePaymentDate *time.Time         `json:"advance_payment_date"`
	BalancePaymentDate *time.Time         `json:"balance_payment_date"`
}

func (p *paymentPut) edits() []engine.FieldEdit {
	var edits []engine.FieldEdit
	if p.FeeRatePercent != nil {
		edits = append(edits, engine.FieldEdit{Field: engine.FieldFeeRatePercent, Value: *p.FeeRatePercent})
	}
	if p.ShippingCost != nil {
		edits = append(edits, engine.FieldEdit{Field: engine.FieldShippingCost, Value: *p.ShippingCost})
	}
	if p.CostItems != nil {
		edits = append(edits, engine.FieldEdit{Field: engine.FieldAdditionalCostItems, Value: *p.CostItems})
	}
	if p.AdvancePaid != nil {
		edits = append(edits, engine.FieldEdit{Field: engine.FieldAdvancePaid, Value: *p.AdvancePaid})
	}
	if p.BalancePaid != nil {
		edits = append(edits, engine.FieldEdit{Field: engine.FieldBalancePaid, Value: *p.BalancePaid})
	}
	if p.TotalPaid != nil {
		edits = append(edits, engine.FieldEdit{Field: engine.FieldTotalPaid, Value: *p.TotalPaid})
	}
	if p.AdvancePaymentDate != nil {
		edits = append(edits, engine.FieldEdit{Field: engine.FieldAdvancePaymentDate, Value: p.AdvancePaymentDate})
	}
	if p.BalancePaymentDate != nil {
		edits = append(edits, engine.FieldEdit{Field: engine.FieldBalancePaymentDate, Value: p.BalancePaymentDate})
	}
	return edits
}

// putPayment is a deliberate save, not a keystroke: it flushes synchronously
// and surfaces any rollback to the caller.
func (a *api) putPayment(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := models.CanMutateProject(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	var put paymentPut
	if err := c.ShouldBindJSON(&put); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	edits := put.edits()
	if len(edits) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no editable fields in request"})
		return
	}

	rec, err := a.registry.Session(ctx, id, models.LoadSnapshot)
	if err != nil {
		respondError(c, err)
		return
	}
	for _, e := range edits {
		if err := rec.Edit(e); err != nil {
			respondError(c, err)
			return
		}
	}
	if err := rec.Reconcile(ctx); err != nil {
		respondError(c, err)
		return
	}
	snap := rec.Store().Working()
	c.JSON(http.StatusOK, gin.H{
		"snapshot": snap,
		"state":    rec.State(),
	})
}

// forceReconcile is the manual retry path after a failed flush.
func (a *api) forceReconcile(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := models.CanMutateProject(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	rec, err := a.registry.Session(ctx, id, models.LoadSnapshot)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := rec.Reconcile(ctx); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"snapshot": rec.Store().Working(),
		"state":    rec.State(),
	})
}

// warehouse

func (a *api) createWarehouseEntry(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := models.CanMutateProject(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	var input models.NewWarehouseEntry
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	// Persist any pending delivery/payment edits before the aggregate moves,
	// then drop the stale session.
	a.flushDirty(ctx, id)
	entry, err := models.CreateWarehouseEntry(ctx, id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	a.registry.Invalidate(id)
	c.JSON(http.StatusCreated, entry)
}

type quantityPut struct {
	Quantity int `json:"quantity" binding:"required"`
}

func (a *api) setEntryQuantity(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	existing, err := models.GetWarehouseEntry(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := models.CanMutateProject(ctx, existing.ProjectId); err != nil {
		respondError(c, err)
		return
	}
	var put quantityPut
	if err := c.ShouldBindJSON(&put); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	a.flushDirty(ctx, existing.ProjectId)
	entry, err := models.SetEntryQuantity(ctx, id, put.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	a.registry.Invalidate(entry.ProjectId)
	c.JSON(http.StatusOK, entry)
}

func (a *api) deleteWarehouseEntry(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	existing, err := models.GetWarehouseEntry(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := models.CanMutateProject(ctx, existing.ProjectId); err != nil {
		respondError(c, err)
		return
	}
	a.flushDirty(ctx, existing.ProjectId)
	entry, err := models.DeleteWarehouseEntry(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	a.registry.Invalidate(entry.ProjectId)
	c.JSON(http.StatusOK, entry)
}

// supplier ledger

func (a *api) getSupplierLedger(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	entries, err := models.ListSupplierLedger(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (a *api) putSupplierLedger(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := models.CanMutateProject(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	var inputs []models.NewSupplierLedgerEntry
	if err := c.ShouldBindJSON(&inputs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	entries, err := models.UpsertSupplierLedger(ctx, id, inputs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// exports

func (a *api) packingList(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	f, err := models.BuildPackingList(c.Request.Context(), id, a.clock.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="packing-list-`+strconv.Itoa(id)+`.xlsx"`)
	if err := f.Write(c.Writer); err != nil {
		config.LogError(a.logger, "handlers", "packingList", "write xlsx", id, err)
	}
}

// debounced flushing

func (a *api) debouncer(projectId int) *engine.Debouncer {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.debounces[projectId]
	if !ok {
		d = engine.NewDebouncer(a.quiet, a.clock)
		a.debounces[projectId] = d
	}
	return d
}

// runFlusher drains quiet sessions. Failures are logged; the session rolls
// back and the client's next read shows the reverted values.
func (a *api) runFlusher(ctx context.Context) {
	interval := a.quiet / 4
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.flushQuiet(ctx)
		}
	}
}

func (a *api) flushQuiet(ctx context.Context) {
	a.mu.Lock()
	ready := make([]int, 0)
	for id, d := range a.debounces {
		if d.Fire() {
			ready = append(ready, id)
		}
	}
	a.mu.Unlock()

	for _, id := range ready {
		a.flushProject(ctx, id)
	}
}

func (a *api) flushProject(ctx context.Context, projectId int) {
	// Serialize flushes across replicas. Best effort: if the lock is held the
	// other replica is already reconciling this project.
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, "ReconcileLock:"+strconv.Itoa(projectId), 10*time.Second, nil)
		if err == redislock.ErrNotObtained {
			return
		}
		if err == nil {
			defer lock.Release(ctx)
		}
	}

	rec, err := a.registry.Session(ctx, projectId, models.LoadSnapshot)
	if err != nil {
		config.LogError(a.logger, "handlers", "flushProject", "load session", projectId, err)
		return
	}
	if err := rec.Reconcile(ctx); err != nil {
		config.LogError(a.logger, "handlers", "flushProject", "reconcile", projectId, err)
		return
	}
	a.registry.Release(projectId)
}

// flushDirty persists a session's pending optimistic edits right away.
// Called before an out-of-band aggregate write so the edits reach the store
// first and a later snapshot submit cannot overwrite the new aggregate with
// a stale one. A submit failure rolls the session back and surfaces on the
// client's next read.
func (a *api) flushDirty(ctx context.Context, projectId int) {
	rec := a.registry.Peek(projectId)
	if rec == nil || rec.State() == engine.StateClean {
		return
	}
	if err := rec.Reconcile(ctx); err != nil {
		config.LogError(a.logger, "handlers", "flushDirty", "flush before aggregate write", projectId, err)
	}
}

// flushAll persists every dirty session, used on shutdown.
func (a *api) flushAll(ctx context.Context) {
	a.mu.Lock()
	ids := make([]int, 0, len(a.debounces))
	for id := range a.debounces {
		ids = append(ids, id)
	}
	a.mu.Unlock()

	for _, id := range ids {
		a.flushProject(ctx, id)
	}
}
