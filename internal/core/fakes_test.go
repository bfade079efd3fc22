package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

// fakeDocuments is an in-memory DocumentStore.
type fakeDocuments struct {
	mu       sync.Mutex
	docs     map[int]*models.Document
	fetchErr map[int]error
	patchErr error
	patches  int
	fetches  int
}

func newFakeDocuments(docs ...*models.Document) *fakeDocuments {
	f := &fakeDocuments{docs: make(map[int]*models.Document), fetchErr: make(map[int]error)}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *fakeDocuments) FetchDocument(_ context.Context, id int) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if err := f.fetchErr[id]; err != nil {
		return nil, err
	}
	d, ok := f.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %d: %w", id, models.ErrDocumentNotFound)
	}
	cp := *d
	cp.CustomFields = append([]models.CustomField(nil), d.CustomFields...)
	return &cp, nil
}

func (f *fakeDocuments) PatchCustomField(ctx context.Context, id, fieldID int, value any) error {
	return f.PatchCustomFields(ctx, id, []models.CustomField{{Field: fieldID, Value: value}})
}

func (f *fakeDocuments) PatchCustomFields(_ context.Context, id int, updates []models.CustomField) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.patchErr != nil {
		return f.patchErr
	}
	d, ok := f.docs[id]
	if !ok {
		return fmt.Errorf("document %d: %w", id, models.ErrDocumentNotFound)
	}
	fields := d.CustomFields
	for _, u := range updates {
		fields = models.WithField(fields, u.Field, u.Value)
	}
	d.CustomFields = fields
	f.patches++
	return nil
}

func (f *fakeDocuments) value(id, field int) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, _ := f.docs[id].FieldValue(field)
	return v
}

// fakeTasks is an in-memory task service that is both TaskBackend and
// TaskBackendProvider.
type fakeTasks struct {
	mu       sync.Mutex
	lists    []models.TaskList
	tasks    map[string][]models.Task
	openErr  error
	listErr  map[string]error
	patchErr error
	nextID   int
	created  int
	patched  int
}

func newFakeTasks(listIDs ...string) *fakeTasks {
	f := &fakeTasks{tasks: make(map[string][]models.Task), listErr: make(map[string]error)}
	for _, id := range listIDs {
		f.lists = append(f.lists, models.TaskList{ID: id, Title: "Liste " + id})
	}
	return f
}

func (f *fakeTasks) Open(context.Context) (TaskBackend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f, nil
}

func (f *fakeTasks) add(listID string, task models.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[listID] = append(f.tasks[listID], task)
}

func (f *fakeTasks) ListTaskLists(context.Context) ([]models.TaskList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TaskList(nil), f.lists...), nil
}

func (f *fakeTasks) ListTasks(_ context.Context, listID string) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErr[listID]; err != nil {
		return nil, err
	}
	out := append([]models.Task(nil), f.tasks[listID]...)
	for i := range out {
		out[i].ListID = listID
	}
	return out, nil
}

func (f *fakeTasks) CreateTask(_ context.Context, listID, title, notes string) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.created++
	task := models.Task{ID: fmt.Sprintf("t%d", f.nextID), Title: title, Notes: notes, Status: models.TaskStatusNeedsAction}
	f.tasks[listID] = append(f.tasks[listID], task)
	task.ListID = listID
	return &task, nil
}

func (f *fakeTasks) PatchTaskNotes(_ context.Context, listID, taskID, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.patchErr != nil {
		return f.patchErr
	}
	for i := range f.tasks[listID] {
		if f.tasks[listID][i].ID == taskID {
			f.tasks[listID][i].Notes = notes
			f.patched++
			return nil
		}
	}
	return fmt.Errorf("task %s not in list %s", taskID, listID)
}

func (f *fakeTasks) all() []models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Task
	for _, l := range f.lists {
		out = append(out, f.tasks[l.ID]...)
	}
	return out
}

// recordingEvents collects logged events.
type recordingEvents struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEvents) LogEvent(eventType string, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return nil
}

func (r *recordingEvents) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == eventType {
			n++
		}
	}
	return n
}

func fixedClock(day string) func() time.Time {
	t, err := time.ParseInLocation(dateLayout, day, time.Local)
	if err != nil {
		panic(err)
	}
	t = t.Add(10 * time.Hour)
	return func() time.Time { return t }
}
