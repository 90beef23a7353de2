package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/scrapeflow-ai/scrapeflow/internal/browser"
	"github.com/scrapeflow-ai/scrapeflow/internal/types"
)

// stubElement is a scriptable browser.Element.
type stubElement struct {
	text     string
	attrs    map[string]string
	children map[string]*stubElement
}

func (e *stubElement) Text() (string, error) { return e.text, nil }
func (e *stubElement) HTML() (string, error) { return "<div>" + e.text + "</div>", nil }
func (e *stubElement) GetAttribute(name string) (string, error) {
	return e.attrs[name], nil
}
func (e *stubElement) SendKeys(string) error { return nil }
func (e *stubElement) Clear() error          { return nil }
func (e *stubElement) FindElement(selector string) (browser.Element, error) {
	if child, ok := e.children[selector]; ok {
		return child, nil
	}
	return nil, types.NewError(types.BROWSER_ELEMENT_MISSING, "no element matches "+selector)
}
func (e *stubElement) FindElements(selector string) ([]browser.Element, error) {
	if child, ok := e.children[selector]; ok {
		return []browser.Element{child}, nil
	}
	return nil, nil
}

// stubDriver is a scriptable browser.Driver for walker and executor tests.
type stubDriver struct {
	mu sync.Mutex

	elements map[string]*stubElement
	multi    map[string][]*stubElement
	source   string
	png      []byte

	failGets   int
	failClicks int

	navigated []string
	clicks    []string
	typed     map[string]string
	closes    int
}

func newStubDriver() *stubDriver {
	return &stubDriver{
		elements: make(map[string]*stubElement),
		multi:    make(map[string][]*stubElement),
		typed:    make(map[string]string),
	}
}

func (d *stubDriver) Get(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failGets > 0 {
		d.failGets--
		return types.NewRetryableError(types.BROWSER_NAVIGATE_FAILED, "navigation timed out")
	}
	d.navigated = append(d.navigated, url)
	return nil
}

func (d *stubDriver) WaitForElement(ctx context.Context, selector string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.elements[selector]; ok {
		return nil
	}
	if _, ok := d.multi[selector]; ok {
		return nil
	}
	return types.NewError(types.BROWSER_ELEMENT_MISSING, "no element matches "+selector)
}

func (d *stubDriver) WaitForNetworkIdle(ctx context.Context) error { return nil }
func (d *stubDriver) WaitForNavigation(ctx context.Context) error  { return nil }

func (d *stubDriver) Click(ctx context.Context, selector string, human bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failClicks > 0 {
		d.failClicks--
		return types.NewRetryableError(types.BROWSER_ELEMENT_MISSING, "element not clickable yet")
	}
	d.clicks = append(d.clicks, selector)
	return nil
}

func (d *stubDriver) Type(ctx context.Context, selector, text string, human bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.typed[selector] = text
	return nil
}

func (d *stubDriver) FindElement(ctx context.Context, selector string) (browser.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.elements[selector]; ok {
		return el, nil
	}
	return nil, types.NewError(types.BROWSER_ELEMENT_MISSING, "no element matches "+selector)
}

func (d *stubDriver) FindElements(ctx context.Context, selector string) ([]browser.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	els := d.multi[selector]
	out := make([]browser.Element, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out, nil
}

func (d *stubDriver) Screenshot(ctx context.Context) ([]byte, error) {
	if d.png == nil {
		return []byte{0x89, 0x50, 0x4e, 0x47}, nil
	}
	return d.png, nil
}

func (d *stubDriver) PageSource(ctx context.Context) (string, error) {
	return d.source, nil
}

func (d *stubDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

// stubExtractor is a canned llm.Extractor.
type stubExtractor struct {
	extractResult  any
	classifyResult string
	generateResult string
	err            error

	extractCalls  []string
	classifyCalls []string
	generateCalls []string
}

func (s *stubExtractor) ExtractData(ctx context.Context, prompt, html string, screenshot []byte) (any, error) {
	s.extractCalls = append(s.extractCalls, prompt)
	return s.extractResult, s.err
}

func (s *stubExtractor) Classify(ctx context.Context, input string, categories []string) (string, error) {
	s.classifyCalls = append(s.classifyCalls, input)
	return s.classifyResult, s.err
}

func (s *stubExtractor) Generate(ctx context.Context, prompt, contextText string, maxTokens int) (string, error) {
	s.generateCalls = append(s.generateCalls, prompt)
	return s.generateResult, s.err
}

// memRepo is an in-memory Repository.
type memRepo struct {
	mu        sync.Mutex
	workflows map[types.ID]*Workflow
	runs      []*RunRecord
	schedules map[types.ID]*Schedule
	datasets  map[string][]map[string]any
}

func newMemRepo() *memRepo {
	return &memRepo{
		workflows: make(map[types.ID]*Workflow),
		schedules: make(map[types.ID]*Schedule),
		datasets:  make(map[string][]map[string]any),
	}
}

func (r *memRepo) CreateWorkflow(ctx context.Context, wf *Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows[wf.ID] = wf
	return nil
}

func (r *memRepo) GetWorkflow(ctx context.Context, id types.ID) (*Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wf, ok := r.workflows[id]
	if !ok {
		return nil, newEngineError(ErrNotFound, "workflow not found")
	}
	return wf, nil
}

func (r *memRepo) ListWorkflows(ctx context.Context, userID types.ID) ([]*Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Workflow
	for _, wf := range r.workflows {
		out = append(out, wf)
	}
	return out, nil
}

func (r *memRepo) UpdateWorkflow(ctx context.Context, wf *Workflow) error {
	return r.CreateWorkflow(ctx, wf)
}

func (r *memRepo) DeleteWorkflow(ctx context.Context, id types.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workflows, id)
	return nil
}

func (r *memRepo) CreateRun(ctx context.Context, run *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *run
	r.runs = append(r.runs, &clone)
	return nil
}

func (r *memRepo) UpdateRun(ctx context.Context, run *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.runs {
		if existing.ID == run.ID {
			clone := *run
			r.runs[i] = &clone
			return nil
		}
	}
	return newEngineError(ErrNotFound, "run not found")
}

func (r *memRepo) GetRun(ctx context.Context, id types.ID) (*RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, newEngineError(ErrNotFound, "run not found")
}

func (r *memRepo) ListRuns(ctx context.Context, workflowID types.ID, limit int) ([]*RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*RunRecord
	// Newest first.
	for i := len(r.runs) - 1; i >= 0; i-- {
		if r.runs[i].WorkflowID == workflowID {
			out = append(out, r.runs[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memRepo) CreateSchedule(ctx context.Context, s *Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *s
	r.schedules[s.ID] = &clone
	return nil
}

func (r *memRepo) GetSchedule(ctx context.Context, id types.ID) (*Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil, newEngineError(ErrNotFound, "schedule not found")
	}
	clone := *s
	return &clone, nil
}

func (r *memRepo) ListDueSchedules(ctx context.Context, now time.Time) ([]*Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Schedule
	for _, s := range r.schedules {
		if s.NextRunAt != nil && !s.NextRunAt.After(now) {
			clone := *s
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memRepo) UpdateSchedule(ctx context.Context, s *Schedule) error {
	return r.CreateSchedule(ctx, s)
}

func (r *memRepo) DeleteSchedule(ctx context.Context, id types.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.schedules, id)
	return nil
}

func (r *memRepo) AppendRows(ctx context.Context, table string, rows []map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasets[table] = append(r.datasets[table], rows...)
	return nil
}
