package app_test

import (
	"context"
	"encoding/json"
	"sync"

	"einstein-dashboard/internal/api"
	"einstein-dashboard/internal/domain"
)

// fakeBackend stands in for the school API in controller tests.
type fakeBackend struct {
	mu sync.Mutex

	admins      []domain.Admin
	students    []domain.Student
	teachers    []domain.Teacher
	grades      []domain.Grade
	sections    []domain.Section
	evaluations []domain.Evaluation
	evaluation  domain.Evaluation
	attempt     domain.Attempt

	listAdmins func(ctx context.Context, call int) ([]domain.Admin, error)
	adminCalls int

	listErr    error
	gradesErr  error
	updateErr  error
	deleteErr  error
	createErr  error
	startErr   error
	finalize   api.FinalizeResult
	finalErr   error
	reportErr  error
	getEvalErr error

	updatedIDs []string
	bodies     []json.RawMessage
	deletedIDs []string
	created    []api.EvaluationCreate
	sectionReq []api.SectionPayload
	started    []api.StartAttemptRequest
	finalized  []api.FinalizeRequest
	reports    []string
}

func (f *fakeBackend) record(id string, body any) {
	data, _ := json.Marshal(body)
	f.updatedIDs = append(f.updatedIDs, id)
	f.bodies = append(f.bodies, data)
}

func (f *fakeBackend) ListAdmins(ctx context.Context) ([]domain.Admin, error) {
	f.mu.Lock()
	f.adminCalls++
	call, hook := f.adminCalls, f.listAdmins
	f.mu.Unlock()
	if hook != nil {
		return hook(ctx, call)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Admin(nil), f.admins...), nil
}

func (f *fakeBackend) UpdateAdmin(_ context.Context, id string, req api.AdminUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.record(id, req)
	return nil
}

func (f *fakeBackend) DeleteAdmin(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

func (f *fakeBackend) ListStudents(context.Context) ([]domain.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Student(nil), f.students...), f.listErr
}

func (f *fakeBackend) UpdateStudent(_ context.Context, id string, req api.StudentUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(id, req)
	return f.updateErr
}

func (f *fakeBackend) DeleteStudent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedIDs = append(f.deletedIDs, id)
	return f.deleteErr
}

func (f *fakeBackend) ListTeachers(context.Context) ([]domain.Teacher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Teacher(nil), f.teachers...), f.listErr
}

func (f *fakeBackend) UpdateTeacher(_ context.Context, id string, req api.TeacherUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(id, req)
	return f.updateErr
}

func (f *fakeBackend) DeleteTeacher(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedIDs = append(f.deletedIDs, id)
	return f.deleteErr
}

func (f *fakeBackend) Grades(context.Context) ([]domain.Grade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gradesErr != nil {
		return nil, f.gradesErr
	}
	return f.grades, nil
}

func (f *fakeBackend) Sections(context.Context) ([]domain.Section, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sections, nil
}

func (f *fakeBackend) SectionsByGrade(_ context.Context, gradeID string) ([]domain.Section, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Section
	for _, s := range f.sections {
		if s.GradeID == gradeID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeBackend) ListSections(ctx context.Context) ([]domain.Section, error) {
	return f.Sections(ctx)
}

func (f *fakeBackend) UpdateSection(_ context.Context, id string, req api.SectionPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(id, req)
	return f.updateErr
}

func (f *fakeBackend) DeleteSection(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedIDs = append(f.deletedIDs, id)
	return f.deleteErr
}

func (f *fakeBackend) CreateAdmin(_ context.Context, req api.NewAdmin) (api.Ack, error) {
	return f.ack(req)
}

func (f *fakeBackend) CreateStudent(_ context.Context, req api.NewStudent) (api.Ack, error) {
	return f.ack(req)
}

func (f *fakeBackend) CreateTeacher(_ context.Context, req api.NewTeacher) (api.Ack, error) {
	return f.ack(req)
}

func (f *fakeBackend) CreateSection(_ context.Context, req api.SectionPayload) (api.Ack, error) {
	f.mu.Lock()
	f.sectionReq = append(f.sectionReq, req)
	f.mu.Unlock()
	return f.ack(req)
}

func (f *fakeBackend) ack(req any) (api.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return api.Ack{}, f.createErr
	}
	f.record("", req)
	return api.Ack{ID: "new-1"}, nil
}

func (f *fakeBackend) CreateEvaluation(_ context.Context, req api.EvaluationCreate) (api.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return api.Ack{}, f.createErr
	}
	f.created = append(f.created, req)
	return api.Ack{ID: "ev-new"}, nil
}

func (f *fakeBackend) ListEvaluations(context.Context, string, string) ([]domain.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Evaluation(nil), f.evaluations...), nil
}

func (f *fakeBackend) UpdateEvaluation(_ context.Context, id string, req api.EvaluationUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(id, req)
	return f.updateErr
}

func (f *fakeBackend) DeleteEvaluation(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedIDs = append(f.deletedIDs, id)
	return f.deleteErr
}

func (f *fakeBackend) GetEvaluation(context.Context, string) (domain.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evaluation, f.getEvalErr
}

func (f *fakeBackend) StartAttempt(_ context.Context, req api.StartAttemptRequest) (api.StartAttemptResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, req)
	if f.startErr != nil {
		return api.StartAttemptResponse{}, f.startErr
	}
	return api.StartAttemptResponse{AttemptID: "int-1"}, nil
}

func (f *fakeBackend) GetAttempt(context.Context, string) (domain.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempt, nil
}

func (f *fakeBackend) FinalizeAttempt(_ context.Context, _ string, req api.FinalizeRequest) (api.FinalizeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = append(f.finalized, req)
	if f.finalErr != nil {
		return api.FinalizeResult{}, f.finalErr
	}
	return f.finalize, nil
}

func (f *fakeBackend) CreateReport(_ context.Context, attemptID string) (api.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, "create:"+attemptID)
	return api.Report(`{"intento_id":"` + attemptID + `"}`), nil
}

func (f *fakeBackend) ReportForAttempt(_ context.Context, attemptID string) (api.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, "get:"+attemptID)
	if f.reportErr != nil {
		return nil, f.reportErr
	}
	return api.Report(`{"existing":true}`), nil
}

func admin(id, userID, name, surname string) domain.Admin {
	return domain.Admin{Person: domain.Person{
		ID:      id,
		UserID:  domain.FlexString(userID),
		Name:    name,
		Surname: surname,
		Email:   name + "@colegio.pe",
		Status:  domain.StatusActive,
	}}
}
