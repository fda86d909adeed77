package fundingrequests

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/factoring-portal/internal/audit"
	"github.com/angelmondragon/factoring-portal/internal/authz"
	"github.com/angelmondragon/factoring-portal/internal/companies"
	"github.com/angelmondragon/factoring-portal/internal/contracts"
	"github.com/angelmondragon/factoring-portal/internal/documents"
	"github.com/angelmondragon/factoring-portal/internal/notifications"
	"github.com/angelmondragon/factoring-portal/internal/sideeffects"
	"github.com/angelmondragon/factoring-portal/pkg/db"
	"github.com/angelmondragon/factoring-portal/pkg/db/dbtest"
	"github.com/angelmondragon/factoring-portal/pkg/db/models"
	"github.com/angelmondragon/factoring-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/factoring-portal/pkg/errors"
	"github.com/angelmondragon/factoring-portal/pkg/logger"
	"github.com/angelmondragon/factoring-portal/pkg/pandadoc"
)

type inlineDispatcher struct{}

func (inlineDispatcher) Dispatch(ctx context.Context, task sideeffects.Task) bool {
	_ = task.Run(ctx)
	return true
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notifications.Message
}

func (n *recordingNotifier) Notify(ctx context.Context, msg notifications.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

// memFiles is an in-memory object store that records call order.
type memFiles struct {
	mu        sync.Mutex
	objects   map[string][]byte
	calls     []string
	uploadErr error
	deleteErr error
}

func newMemFiles() *memFiles {
	return &memFiles{objects: map[string][]byte{}}
}

func (m *memFiles) Upload(ctx context.Context, object, contentType string, r io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "upload:"+object)
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[object] = data
	return nil
}

func (m *memFiles) Exists(ctx context.Context, object string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[object]
	return ok, nil
}

func (m *memFiles) Delete(ctx context.Context, object string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "delete:"+object)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, object)
	return nil
}

type stubProvider struct {
	templateID string
	createErr  error
	sendErr    error
	sent       []string
	sessionFor string
}

func (p *stubProvider) TemplateID() string { return p.templateID }

func (p *stubProvider) CreateDocument(ctx context.Context, req pandadoc.CreateDocumentRequest) (*pandadoc.Document, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	return &pandadoc.Document{ID: "env-" + uuid.NewString()[:8], Name: req.Name, Status: "document.draft"}, nil
}

func (p *stubProvider) SendDocument(ctx context.Context, documentID, subject, message string) error {
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent = append(p.sent, documentID)
	return nil
}

func (p *stubProvider) CreateSessionLink(ctx context.Context, documentID, email string) (string, error) {
	p.sessionFor = email
	return "https://app.pandadoc.com/s/session-1", nil
}

type failingDelete struct {
	Repository
	err error
}

func (f failingDelete) Delete(ctx context.Context, companyID, requestID uuid.UUID) (int64, error) {
	return 0, f.err
}

type fixture struct {
	svc       Service
	conn      *gorm.DB
	repo      Repository
	docs      documents.Repository
	audits    audit.Repository
	notifier  *recordingNotifier
	files     *memFiles
	provider  *stubProvider
	logs      *bytes.Buffer
	companyID uuid.UUID
}

type fixtureOption func(*ServiceParams)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	logs := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: logs})

	payer := "ap@buyer.test"
	companyRepo := companies.NewRepository(conn)
	company := &models.Company{ID: uuid.New(), Name: "Acme Receivables", PayerEmail: &payer}
	require.NoError(t, companyRepo.Create(context.Background(), company))

	auditRepo := audit.NewRepository(conn)
	recorder, err := audit.NewRecorder(auditRepo, inlineDispatcher{}, logg)
	require.NoError(t, err)

	provider := &stubProvider{templateID: "tmpl-1"}
	generator, err := contracts.NewPandaDocGenerator(provider, companyRepo)
	require.NoError(t, err)

	f := &fixture{
		conn:      conn,
		repo:      NewRepository(conn),
		docs:      documents.NewRepository(conn),
		audits:    auditRepo,
		notifier:  &recordingNotifier{},
		files:     newMemFiles(),
		provider:  provider,
		logs:      logs,
		companyID: company.ID,
	}

	params := ServiceParams{
		Repo:      f.repo,
		Documents: f.docs,
		Tx:        db.Wrap(conn),
		Files:     f.files,
		Generator: generator,
		Provider:  provider,
		Audit:     recorder,
		Notifier:  f.notifier,
		Logger:    logg,
		Config: Config{
			ForceSignEnabled:  true,
			ViewerURLTemplate: "https://app.pandadoc.com/a/#/documents/{id}",
		},
	}
	for _, opt := range opts {
		opt(&params)
	}
	f.svc, err = NewService(params)
	require.NoError(t, err)
	return f
}

func (f *fixture) seed(t *testing.T, status enums.FundingRequestStatus) *models.FundingRequest {
	t.Helper()
	invoice := "INV-100"
	req := &models.FundingRequest{
		ID:              uuid.New(),
		CompanyID:       f.companyID,
		RequestedAmount: decimal.RequireFromString("1000.00"),
		InvoiceID:       &invoice,
		Status:          status,
	}
	require.NoError(t, f.repo.Create(context.Background(), req))
	return req
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *models.FundingRequest {
	t.Helper()
	req, err := f.repo.Get(context.Background(), f.companyID, id)
	require.NoError(t, err)
	require.NotNil(t, req)
	return req
}

func (f *fixture) auditActions(t *testing.T, requestID uuid.UUID) []string {
	t.Helper()
	rows, err := f.audits.ListForEntity(context.Background(), f.companyID, audit.EntityFundingRequest, requestID)
	require.NoError(t, err)
	actions := make([]string, 0, len(rows))
	for _, row := range rows {
		actions = append(actions, row.Action)
	}
	return actions
}

func (f *fixture) staff() authz.Actor {
	return authz.Actor{UserID: uuid.New(), Email: "ops@factor.test", IsStaff: true, CompanyID: f.companyID}
}

func (f *fixture) member(role enums.MemberRole) authz.Actor {
	return authz.Actor{
		UserID:     uuid.New(),
		Email:      "cfo@acme.test",
		CompanyID:  f.companyID,
		Membership: &authz.Snapshot{Role: role, Status: enums.MembershipStatusActive},
	}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestStaffOnlyOperationsForbidNonStaffWithoutMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.seed(t, enums.FundingRequestStatusSigned)
	owner := f.member(enums.MemberRoleOwner)

	ops := map[string]func() error{
		"archive": func() error { _, err := f.svc.Archive(ctx, owner, req.ID); return err },
		"deny":    func() error { _, err := f.svc.Deny(ctx, owner, req.ID); return err },
		"fund":    func() error { _, err := f.svc.Fund(ctx, owner, req.ID); return err },
		"force":   func() error { _, err := f.svc.ForceSign(ctx, owner, req.ID); return err },
		"gen":     func() error { _, err := f.svc.GenerateContract(ctx, owner, req.ID); return err },
		"send":    func() error { _, err := f.svc.SendContract(ctx, owner, req.ID); return err },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			requireCode(t, op(), pkgerrors.CodeForbidden)
		})
	}

	after := f.reload(t, req.ID)
	assert.Equal(t, enums.FundingRequestStatusSigned, after.Status)
	assert.Equal(t, req.Version, after.Version)
	assert.Nil(t, after.ArchivedAt)
	assert.Empty(t, f.auditActions(t, req.ID))
	assert.Zero(t, f.notifier.count())
}

func TestUnauthenticatedActorIsRejected(t *testing.T) {
	f := newFixture(t)
	req := f.seed(t, enums.FundingRequestStatusReview)
	_, err := f.svc.Get(context.Background(), authz.Actor{CompanyID: f.companyID}, req.ID)
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestDenyCancelsAndClearsArchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	staff := f.staff()
	req := f.seed(t, enums.FundingRequestStatusOffered)

	archived, err := f.svc.Archive(ctx, staff, req.ID)
	require.NoError(t, err)
	require.True(t, archived.IsArchived())

	denied, err := f.svc.Deny(ctx, staff, req.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.FundingRequestStatusCancelled, denied.Status)
	assert.Nil(t, denied.ArchivedAt)
	assert.Nil(t, denied.ArchivedBy)
	assert.Equal(t, req.Version+2, denied.Version)
}

func TestDenyFundedIsInvalidTransition(t *testing.T) {
	f := newFixture(t)
	req := f.seed(t, enums.FundingRequestStatusFunded)

	_, err := f.svc.Deny(context.Background(), f.staff(), req.ID)
	requireCode(t, err, pkgerrors.CodeInvalidTransition)
	assert.Equal(t, http.StatusUnprocessableEntity, pkgerrors.As(err).Status())
	assert.Equal(t, enums.FundingRequestStatusFunded, f.reload(t, req.ID).Status)
}

func TestArchiveSetsBothFields(t *testing.T) {
	now := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)
	f := newFixture(t, func(p *ServiceParams) { p.Clock = func() time.Time { return now } })
	staff := f.staff()
	req := f.seed(t, enums.FundingRequestStatusReview)

	_, err := f.svc.Archive(context.Background(), staff, req.ID)
	require.NoError(t, err)

	after := f.reload(t, req.ID)
	require.NotNil(t, after.ArchivedAt)
	require.NotNil(t, after.ArchivedBy)
	assert.True(t, now.Equal(after.ArchivedAt.UTC()))
	assert.Equal(t, staff.UserID, *after.ArchivedBy)
	assert.Equal(t, []string{audit.ActionArchived}, f.auditActions(t, req.ID))
}

func TestArchiveTerminalIsRejected(t *testing.T) {
	f := newFixture(t)
	req := f.seed(t, enums.FundingRequestStatusCancelled)
	_, err := f.svc.Archive(context.Background(), f.staff(), req.ID)
	requireCode(t, err, pkgerrors.CodeInvalidTransition)
}

func TestFundIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	staff := f.staff()
	req := f.seed(t, enums.FundingRequestStatusSigned)

	first, err := f.svc.Fund(ctx, staff, req.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.FundingRequestStatusFunded, first.Status)

	second, err := f.svc.Fund(ctx, staff, req.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.FundingRequestStatusFunded, second.Status)
	assert.Equal(t, first.Version, second.Version)

	assert.Equal(t, 1, f.notifier.count())
	assert.Equal(t, []string{audit.ActionFunded}, f.auditActions(t, req.ID))
	assert.Equal(t, enums.NotificationTypeFunding, f.notifier.messages[0].Type)
	assert.Contains(t, f.notifier.messages[0].Link, req.ID.String())
}

func TestFundPreconditionModes(t *testing.T) {
	strict := newFixture(t)
	req := strict.seed(t, enums.FundingRequestStatusAccepted)
	_, err := strict.svc.Fund(context.Background(), strict.staff(), req.ID)
	requireCode(t, err, pkgerrors.CodeInvalidTransition)

	permissive := newFixture(t, func(p *ServiceParams) { p.Config.PermissiveFunding = true })
	req = permissive.seed(t, enums.FundingRequestStatusAccepted)
	funded, err := permissive.svc.Fund(context.Background(), permissive.staff(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.FundingRequestStatusFunded, funded.Status)

	cancelled := permissive.seed(t, enums.FundingRequestStatusCancelled)
	_, err = permissive.svc.Fund(context.Background(), permissive.staff(), cancelled.ID)
	requireCode(t, err, pkgerrors.CodeInvalidTransition)
}

func TestForceSignEnvironmentGate(t *testing.T) {
	f := newFixture(t, func(p *ServiceParams) { p.Config.ForceSignEnabled = false })
	req := f.seed(t, enums.FundingRequestStatusAccepted)

	_, err := f.svc.ForceSign(context.Background(), f.staff(), req.ID)
	requireCode(t, err, pkgerrors.CodeForbiddenInEnv)
	assert.Equal(t, http.StatusForbidden, pkgerrors.As(err).Status())
	assert.Equal(t, enums.FundingRequestStatusAccepted, f.reload(t, req.ID).Status)
}

func TestForceSignRequiresContract(t *testing.T) {
	f := newFixture(t)
	req := f.seed(t, enums.FundingRequestStatusAccepted)
	_, err := f.svc.ForceSign(context.Background(), f.staff(), req.ID)
	requireCode(t, err, pkgerrors.CodeDocumentNotFound)
	assert.Equal(t, enums.FundingRequestStatusAccepted, f.reload(t, req.ID).Status)
}

func TestForceSignMarksSignedAndStoresPlaceholder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	staff := f.staff()
	req := f.seed(t, enums.FundingRequestStatusAccepted)

	doc, err := f.svc.GenerateContract(ctx, staff, req.ID)
	require.NoError(t, err)

	signed, err := f.svc.ForceSign(ctx, staff, req.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.FundingRequestStatusSigned, signed.Status)

	latest, err := f.docs.LatestContract(ctx, f.companyID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DocumentStatusSigned, latest.Status)
	require.NotNil(t, latest.FilePath)
	assert.Contains(t, f.files.objects, contractObjectPath(doc))

	again, err := f.svc.ForceSign(ctx, staff, req.ID)
	require.NoError(t, err)
	assert.Equal(t, signed.Version, again.Version)
	assert.Equal(t, []string{audit.ActionContractGenerated, audit.ActionForceSigned}, f.auditActions(t, req.ID))
}

func TestForceSignSwallowsStorageErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	staff := f.staff()
	req := f.seed(t, enums.FundingRequestStatusAccepted)
	_, err := f.svc.GenerateContract(ctx, staff, req.ID)
	require.NoError(t, err)

	f.files.uploadErr = errors.New("bucket unavailable")
	signed, err := f.svc.ForceSign(ctx, staff, req.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.FundingRequestStatusSigned, signed.Status)
	assert.Contains(t, f.logs.String(), "placeholder upload failed")
}

func TestForceSignFromEarlierStatuses(t *testing.T) {
	for _, from := range []enums.FundingRequestStatus{
		enums.FundingRequestStatusReview,
		enums.FundingRequestStatusOffered,
	} {
		t.Run(string(from), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			staff := f.staff()
			req := f.seed(t, from)
			_, err := f.svc.GenerateContract(ctx, staff, req.ID)
			require.NoError(t, err)

			signed, err := f.svc.ForceSign(ctx, staff, req.ID)
			require.NoError(t, err)
			assert.Equal(t, enums.FundingRequestStatusSigned, signed.Status)
			assert.Equal(t, enums.FundingRequestStatusSigned, f.reload(t, req.ID).Status)
			assert.Equal(t, []string{audit.ActionContractGenerated, audit.ActionForceSigned}, f.auditActions(t, req.ID))
		})
	}
}

func TestForceSignTerminalIsRejected(t *testing.T) {
	for _, from := range []enums.FundingRequestStatus{
		enums.FundingRequestStatusFunded,
		enums.FundingRequestStatusCancelled,
	} {
		t.Run(string(from), func(t *testing.T) {
			f := newFixture(t)
			req := f.seed(t, from)
			_, err := f.svc.ForceSign(context.Background(), f.staff(), req.ID)
			requireCode(t, err, pkgerrors.CodeInvalidTransition)

			after := f.reload(t, req.ID)
			assert.Equal(t, from, after.Status)
			assert.Equal(t, req.Version, after.Version)
		})
	}
}

func TestCrossTenantRequestIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.seed(t, enums.FundingRequestStatusSigned)

	other := f.staff()
	other.CompanyID = uuid.New()
	_, err := f.svc.Get(ctx, other, req.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = f.svc.Fund(ctx, other, req.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
	requireCode(t, f.svc.Delete(ctx, other, req.ID), pkgerrors.CodeNotFound)
	_, err = f.svc.Archive(ctx, other, req.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
	invoice := "INV-OTHER"
	_, err = f.svc.Update(ctx, other, req.ID, PatchRequest{InvoiceID: &invoice})
	requireCode(t, err, pkgerrors.CodeNotFound)

	after := f.reload(t, req.ID)
	assert.Equal(t, enums.FundingRequestStatusSigned, after.Status)
	assert.Equal(t, req.Version, after.Version)
	assert.Nil(t, after.ArchivedAt)
	require.NotNil(t, after.InvoiceID)
	assert.Equal(t, "INV-100", *after.InvoiceID)
	assert.Empty(t, f.auditActions(t, req.ID))
}

func TestUpdateAppliesPatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.seed(t, enums.FundingRequestStatusReview)

	amount := decimal.RequireFromString("2500.50")
	status := "offered"
	clear := ""
	updated, err := f.svc.Update(ctx, f.member(enums.MemberRoleOperator), req.ID, PatchRequest{
		RequestedAmount: &amount,
		Status:          &status,
		InvoiceID:       &clear,
	})
	require.NoError(t, err)
	assert.True(t, amount.Equal(updated.RequestedAmount))
	assert.Equal(t, enums.FundingRequestStatusOffered, updated.Status)
	assert.Nil(t, updated.InvoiceID)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, []string{audit.ActionUpdated}, f.auditActions(t, req.ID))
}

func TestUpdateRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	member := f.member(enums.MemberRoleOperator)
	req := f.seed(t, enums.FundingRequestStatusReview)

	zero := decimal.Zero
	_, err := f.svc.Update(ctx, member, req.ID, PatchRequest{RequestedAmount: &zero})
	requireCode(t, err, pkgerrors.CodeValidation)

	skip := "accepted"
	_, err = f.svc.Update(ctx, member, req.ID, PatchRequest{Status: &skip})
	requireCode(t, err, pkgerrors.CodeInvalidTransition)

	_, err = f.svc.Update(ctx, member, req.ID, PatchRequest{})
	requireCode(t, err, pkgerrors.CodeValidation)

	stale := 7
	invoice := "INV-9"
	_, err = f.svc.Update(ctx, member, req.ID, PatchRequest{InvoiceID: &invoice, Version: &stale})
	requireCode(t, err, pkgerrors.CodeConflict)

	funded := f.seed(t, enums.FundingRequestStatusFunded)
	_, err = f.svc.Update(ctx, member, funded.ID, PatchRequest{InvoiceID: &invoice})
	requireCode(t, err, pkgerrors.CodeInvalidTransition)

	viewer := authz.Actor{UserID: uuid.New(), CompanyID: f.companyID}
	_, err = f.svc.Update(ctx, viewer, req.ID, PatchRequest{InvoiceID: &invoice})
	requireCode(t, err, pkgerrors.CodeForbidden)

	assert.Equal(t, 1, f.reload(t, req.ID).Version)
}

func TestConcurrentWriteLosesOnVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.seed(t, enums.FundingRequestStatusSigned)

	rows, err := f.repo.UpdateGuarded(ctx, f.companyID, req.ID, req.Version, map[string]any{"invoice_id": "INV-race"})
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	svc := f.svc.(*service)
	_, err = svc.applyGuarded(ctx, f.repo, req, map[string]any{"status": enums.FundingRequestStatusFunded})
	requireCode(t, err, pkgerrors.CodeConflict)
	assert.Equal(t, enums.FundingRequestStatusSigned, f.reload(t, req.ID).Status)
}

func TestScenarioDenyFromReviewIsAudited(t *testing.T) {
	f := newFixture(t)
	staff := f.staff()
	req := f.seed(t, enums.FundingRequestStatusReview)

	_, err := f.svc.Deny(context.Background(), staff, req.ID)
	require.NoError(t, err)

	rows, err := f.audits.ListForEntity(context.Background(), f.companyID, audit.EntityFundingRequest, req.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, audit.ActionStatusChanged, rows[0].Action)
	assert.Equal(t, "review", rows[0].Data["from_status"])
	assert.Equal(t, "cancelled", rows[0].Data["to_status"])
	require.NotNil(t, rows[0].ActorID)
	assert.Equal(t, staff.UserID, *rows[0].ActorID)
}

func TestScenarioMemberCannotFund(t *testing.T) {
	f := newFixture(t)
	req := f.seed(t, enums.FundingRequestStatusSigned)

	_, err := f.svc.Fund(context.Background(), f.member(enums.MemberRoleOwner), req.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
	assert.Equal(t, http.StatusForbidden, pkgerrors.As(err).Status())
	assert.Equal(t, enums.FundingRequestStatusSigned, f.reload(t, req.ID).Status)
	assert.Zero(t, f.notifier.count())
}

func TestScenarioMissingPayerSurfacesCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.conn.Model(&models.Company{}).Where("id = ?", f.companyID).
		Update("payer_email", nil).Error)
	req := f.seed(t, enums.FundingRequestStatusAccepted)

	_, err := f.svc.GenerateContract(ctx, f.staff(), req.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.Code(contracts.CodeMissingPayer), typed.Code())
	assert.Equal(t, http.StatusUnprocessableEntity, typed.Status())

	logs := f.logs.String()
	assert.Contains(t, logs, "integration warning")
	assert.Contains(t, logs, f.companyID.String())
	assert.Contains(t, logs, "has no payer email")

	var events []models.IntegrationEvent
	require.NoError(t, f.conn.Where("company_id = ?", f.companyID).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, "pandadoc", events[0].Provider)
	assert.Contains(t, events[0].Message, "has no payer email")
}

func TestGenerateContractUnexpectedErrorIsInternal(t *testing.T) {
	f := newFixture(t)
	f.provider.createErr = errors.New("dial tcp: connection reset")
	req := f.seed(t, enums.FundingRequestStatusAccepted)

	_, err := f.svc.GenerateContract(context.Background(), f.staff(), req.ID)
	requireCode(t, err, pkgerrors.CodeInternal)
	assert.Contains(t, f.logs.String(), "connection reset")
}

func TestScenarioDeleteRemovesFileBeforeRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.seed(t, enums.FundingRequestStatusReview)

	path := "companies/x/requests/y/request.pdf"
	f.files.objects[path] = []byte("%PDF-1.4")
	require.NoError(t, f.conn.Model(&models.FundingRequest{}).Where("id = ?", req.ID).
		Update("file_path", path).Error)

	params := ServiceParams{
		Repo:      failingDelete{Repository: f.repo, err: errors.New("deadlock detected")},
		Documents: f.docs,
		Tx:        db.Wrap(f.conn),
		Files:     f.files,
		Generator: noopGenerator{},
		Provider:  f.provider,
		Audit:     noopAudit{},
		Notifier:  f.notifier,
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	}
	svc, err := NewService(params)
	require.NoError(t, err)

	err = svc.Delete(ctx, f.member(enums.MemberRoleOwner), req.ID)
	requireCode(t, err, pkgerrors.CodeDependency)
	assert.Equal(t, http.StatusInternalServerError, pkgerrors.As(err).Status())

	assert.Equal(t, []string{"delete:" + path}, f.files.calls)
	assert.NotContains(t, f.files.objects, path)
	assert.NotNil(t, f.reload(t, req.ID))
}

func TestDeleteRequiresOwnerByDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.seed(t, enums.FundingRequestStatusReview)

	requireCode(t, f.svc.Delete(ctx, f.member(enums.MemberRoleOperator), req.ID), pkgerrors.CodeForbidden)
	require.NoError(t, f.svc.Delete(ctx, f.member(enums.MemberRoleOwner), req.ID))

	gone, err := f.repo.Get(ctx, f.companyID, req.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSendContractAndLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	staff := f.staff()
	req := f.seed(t, enums.FundingRequestStatusAccepted)

	_, err := f.svc.SendContract(ctx, staff, req.ID)
	requireCode(t, err, pkgerrors.CodeDocumentNotFound)

	doc, err := f.svc.GenerateContract(ctx, staff, req.ID)
	require.NoError(t, err)

	sent, err := f.svc.SendContract(ctx, staff, req.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DocumentStatusSent, sent.Status)
	assert.Equal(t, []string{*doc.ProviderEnvelopeID}, f.provider.sent)

	viewer, err := f.svc.ContractLink(ctx, staff, req.ID)
	require.NoError(t, err)
	assert.Equal(t, LinkKindViewer, viewer.Kind)
	assert.True(t, strings.HasSuffix(viewer.URL, *doc.ProviderEnvelopeID))

	member := f.member(enums.MemberRoleViewer)
	session, err := f.svc.ContractLink(ctx, member, req.ID)
	require.NoError(t, err)
	assert.Equal(t, LinkKindSession, session.Kind)
	assert.Equal(t, member.Email, f.provider.sessionFor)

	f.provider.sendErr = errors.New("pandadoc 400 request_error: document is not in draft status")
	_, err = f.svc.SendContract(ctx, staff, req.ID)
	requireCode(t, err, pkgerrors.CodeProvider)
	assert.Contains(t, pkgerrors.As(err).Message(), "not in draft status")
}

func TestMarkSignedFromWebhook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.seed(t, enums.FundingRequestStatusAccepted)
	doc, err := f.svc.GenerateContract(ctx, f.staff(), req.ID)
	require.NoError(t, err)

	ok, err := f.svc.MarkSigned(ctx, *doc.ProviderEnvelopeID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, enums.FundingRequestStatusSigned, f.reload(t, req.ID).Status)

	ok, err = f.svc.MarkSigned(ctx, "unknown-envelope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAttachDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.seed(t, enums.FundingRequestStatusReview)
	member := f.member(enums.MemberRoleOperator)

	docs, err := f.svc.AttachDocuments(ctx, member, req.ID, []Upload{
		{FileName: "../invoice 42.pdf", Content: strings.NewReader("%PDF-1.7\n%âãÏÓ\n1 0 obj\n")},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "application/pdf", docs[0].ContentType)
	assert.Equal(t, "invoice_42.pdf", docs[0].FileName)
	require.NotNil(t, docs[0].FilePath)
	assert.Contains(t, f.files.objects, *docs[0].FilePath)

	stored, err := f.docs.ListForRequest(ctx, f.companyID, req.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	_, err = f.svc.AttachDocuments(ctx, member, req.ID, []Upload{
		{FileName: "notes.txt", Content: strings.NewReader("just some words")},
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestSummaryCountsPerCompany(t *testing.T) {
	f := newFixture(t)
	f.seed(t, enums.FundingRequestStatusReview)
	f.seed(t, enums.FundingRequestStatusReview)
	f.seed(t, enums.FundingRequestStatusFunded)
	empty := uuid.New()

	out, err := f.svc.Summary(context.Background(), f.staff(), []uuid.UUID{f.companyID, empty})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, f.companyID, out[0].CompanyID)
	assert.EqualValues(t, 3, out[0].Total)
	assert.EqualValues(t, 2, out[0].Counts[enums.FundingRequestStatusReview])
	assert.EqualValues(t, 0, out[1].Total)

	_, err = f.svc.Summary(context.Background(), f.member(enums.MemberRoleOwner), []uuid.UUID{f.companyID})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestListPagesAndHidesArchived(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	member := f.member(enums.MemberRoleViewer)
	for i := 0; i < 3; i++ {
		f.seed(t, enums.FundingRequestStatusReview)
	}
	archived := f.seed(t, enums.FundingRequestStatusOffered)
	_, err := f.svc.Archive(ctx, f.staff(), archived.ID)
	require.NoError(t, err)

	page, err := f.svc.List(ctx, member, ListParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.Cursor)

	next, err := f.svc.List(ctx, member, ListParams{Limit: 2, Cursor: page.Cursor})
	require.NoError(t, err)
	assert.Len(t, next.Items, 1)
	assert.Empty(t, next.Cursor)

	all, err := f.svc.List(ctx, member, ListParams{IncludeArchived: true, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all.Items, 4)
}

type noopGenerator struct{}

func (noopGenerator) Generate(ctx context.Context, in contracts.Input) (*contracts.Contract, error) {
	return nil, errors.New("not used")
}

type noopAudit struct{}

func (noopAudit) Record(ctx context.Context, entry audit.Entry) {}

func (noopAudit) IntegrationWarning(ctx context.Context, companyID uuid.UUID, provider, message string) {
}
