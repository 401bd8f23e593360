package openspec

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Sentinel errors for lookups. Transition violations carry their own
// descriptive errors from the state machine.
var (
	ErrChangeNotFound   = fmt.Errorf("change not found")
	ErrDocumentNotFound = fmt.Errorf("document not found")
)

// Store is the filesystem-backed specification workspace. All state is
// held in memory and mirrored to YAML files; the directory layout
// encodes lifecycle state, so a change's file moves between partitions
// as its status changes.
type Store struct {
	root string

	mu        sync.RWMutex
	changes   map[string]*ChangeProposal
	documents map[string]*Document
}

// Open initializes the workspace at root, creating the partition
// layout and loading any existing records. Unreadable files are
// skipped with a warning rather than failing the whole workspace.
func Open(root string) (*Store, error) {
	s := &Store{
		root:      root,
		changes:   make(map[string]*ChangeProposal),
		documents: make(map[string]*Document),
	}

	partitions := []string{
		partitionFor(StatusProposed),
		partitionFor(StatusApproved),
		partitionFor(StatusRejected),
		partitionFor(StatusImplemented),
	}
	for t := range validSpecTypes {
		partitions = append(partitions, specPartition(t))
	}
	for _, p := range partitions {
		if err := os.MkdirAll(filepath.Join(root, p), 0o755); err != nil {
			return nil, fmt.Errorf("creating workspace directory %s: %w", p, err)
		}
	}

	if err := s.loadChanges(); err != nil {
		return nil, err
	}
	if err := s.loadDocuments(); err != nil {
		return nil, err
	}

	slog.Info("specification workspace opened", "root", root,
		"changes", len(s.changes), "documents", len(s.documents))
	return s, nil
}

// Root returns the workspace root directory.
func (s *Store) Root() string { return s.root }

// --- Change proposals ---

// CreateChangeProposal registers a new proposal. A missing ID is
// generated from the current time; collisions get a numeric suffix.
// Every listed dependency must already exist, and the dependency graph
// must stay acyclic. The proposal always enters at status proposed.
func (s *Store) CreateChangeProposal(change *ChangeProposal) error {
	if change.Title == "" {
		return fmt.Errorf("change proposal requires a title")
	}
	if change.Priority == "" {
		change.Priority = PriorityMedium
	}
	if err := ValidatePriority(change.Priority); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if change.ID == "" {
		change.ID = NewChangeID()
	}
	originalID := change.ID
	for suffix := 2; ; suffix++ {
		if _, exists := s.changes[change.ID]; !exists {
			break
		}
		change.ID = fmt.Sprintf("%s-%d", originalID, suffix)
	}

	if err := s.validateDependencies(change); err != nil {
		return err
	}

	now := timeNow().UTC().Format("2006-01-02T15:04:05Z07:00")
	change.Status = StatusProposed
	change.CreatedAt = now
	change.UpdatedAt = now

	if err := s.writeChange(change); err != nil {
		return err
	}
	s.changes[change.ID] = change
	slog.Info("change proposed", "change", change.ID, "title", change.Title, "priority", change.Priority)
	return nil
}

// validateDependencies checks that each dependency exists and that
// adding the candidate keeps the dependency graph acyclic. Caller
// holds the lock.
func (s *Store) validateDependencies(candidate *ChangeProposal) error {
	for _, dep := range candidate.Dependencies {
		if _, ok := s.changes[dep]; !ok {
			return fmt.Errorf("dependency %q of change %q: %w", dep, candidate.ID, ErrChangeNotFound)
		}
	}

	// DFS from the candidate: a path back to the candidate's own ID
	// would close a cycle.
	visited := make(map[string]bool)
	var visit func(id string) bool
	visit = func(id string) bool {
		if id == candidate.ID {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true
		if existing, ok := s.changes[id]; ok {
			for _, dep := range existing.Dependencies {
				if visit(dep) {
					return true
				}
			}
		}
		return false
	}
	for _, dep := range candidate.Dependencies {
		if visit(dep) {
			return fmt.Errorf("change %q: dependency %q introduces a cycle", candidate.ID, dep)
		}
	}
	return nil
}

// Approve moves a proposed change to approved, recording who reviewed
// it and when.
func (s *Store) Approve(id, reviewer string) error {
	return s.transition(id, StatusApproved, func(c *ChangeProposal) {
		c.ReviewedBy = reviewer
		c.ReviewedAt = c.UpdatedAt
	})
}

// Reject moves a proposed change to rejected, recording the reviewer
// and the reason.
func (s *Store) Reject(id, reviewer, reason string) error {
	return s.transition(id, StatusRejected, func(c *ChangeProposal) {
		c.ReviewedBy = reviewer
		c.ReviewedAt = c.UpdatedAt
		if c.Content == nil {
			c.Content = make(map[string]string)
		}
		c.Content["rejection_reason"] = reason
	})
}

// Implement moves an approved change to implemented, recording who
// implemented it and when.
func (s *Store) Implement(id, implementer string) error {
	return s.transition(id, StatusImplemented, func(c *ChangeProposal) {
		c.ImplementedBy = implementer
		c.ImplementedAt = c.UpdatedAt
	})
}

// transition applies the state machine, runs record to stamp the audit
// fields, and relocates the change's file to the partition of its new
// status. The new file is written before the old one is removed, so a
// crash leaves at worst a duplicate, never a lost change.
func (s *Store) transition(id string, to ChangeStatus, record func(*ChangeProposal)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	change, ok := s.changes[id]
	if !ok {
		return fmt.Errorf("change %q: %w", id, ErrChangeNotFound)
	}
	if err := checkTransition(change, to); err != nil {
		return err
	}

	oldPath := s.changePath(change)
	change.Status = to
	change.UpdatedAt = timeNow().UTC().Format("2006-01-02T15:04:05Z07:00")
	if record != nil {
		record(change)
	}

	if err := s.writeChange(change); err != nil {
		return err
	}
	if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("removing old change file", "change", id, "path", oldPath, "error", err)
	}
	slog.Info("change transitioned", "change", id, "status", to)
	return nil
}

// Change returns a copy of the proposal with the given ID.
func (s *Store) Change(id string) (*ChangeProposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	change, ok := s.changes[id]
	if !ok {
		return nil, fmt.Errorf("change %q: %w", id, ErrChangeNotFound)
	}
	cp := *change
	return &cp, nil
}

// ListChanges returns all changes with the given status, or every
// change when status is empty, ordered by creation time then ID.
func (s *Store) ListChanges(status ChangeStatus) []ChangeProposal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []ChangeProposal
	for _, change := range s.changes {
		if status != "" && change.Status != status {
			continue
		}
		result = append(result, *change)
	}
	sortChanges(result)
	return result
}

// PendingChanges returns all changes still awaiting review.
func (s *Store) PendingChanges() []ChangeProposal {
	return s.ListChanges(StatusProposed)
}

// --- Specification documents ---

// CreateDocument registers a new document under specs/<type>/. A
// missing ID is generated from the type and current time; collisions
// get a numeric suffix. A missing version defaults to "1.0.0".
func (s *Store) CreateDocument(doc *Document) error {
	if err := ValidateSpecType(doc.Type); err != nil {
		return err
	}
	if doc.Title == "" {
		return fmt.Errorf("document requires a title")
	}
	if doc.Version == "" {
		doc.Version = "1.0.0"
	}
	if doc.Content == nil {
		doc.Content = make(map[string]string)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID == "" {
		doc.ID = NewDocumentID(doc.Type)
	}
	originalID := doc.ID
	for suffix := 2; ; suffix++ {
		if _, exists := s.documents[doc.ID]; !exists {
			break
		}
		doc.ID = fmt.Sprintf("%s-%d", originalID, suffix)
	}

	now := timeNow().UTC().Format("2006-01-02T15:04:05Z07:00")
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if err := s.writeDocument(doc); err != nil {
		return err
	}
	s.documents[doc.ID] = doc
	slog.Info("document created", "document", doc.ID, "type", doc.Type, "title", doc.Title)
	return nil
}

// UpdateDocument replaces an existing document's content wholesale,
// bumps its patch version, and records the author and the change that
// drove the update. Stale sections do not survive an update.
func (s *Store) UpdateDocument(id string, content map[string]string, author, changeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return fmt.Errorf("document %q: %w", id, ErrDocumentNotFound)
	}
	if content == nil {
		content = make(map[string]string)
	}
	doc.Content = content
	if author != "" {
		doc.Author = author
	}
	if changeID != "" && !contains(doc.Changes, changeID) {
		doc.Changes = append(doc.Changes, changeID)
	}
	doc.Version = bumpPatch(doc.Version)
	doc.UpdatedAt = timeNow().UTC().Format("2006-01-02T15:04:05Z07:00")
	return s.writeDocument(doc)
}

// Document returns a copy of the document with the given ID.
func (s *Store) Document(id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", id, ErrDocumentNotFound)
	}
	cp := *doc
	return &cp, nil
}

// ListDocuments returns all documents of the given type, or every
// document when specType is empty, ordered by creation time then ID.
func (s *Store) ListDocuments(specType SpecType) []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []Document
	for _, doc := range s.documents {
		if specType != "" && doc.Type != specType {
			continue
		}
		result = append(result, *doc)
	}
	sortDocuments(result)
	return result
}

// SearchDocuments returns documents whose title, content, or tags
// contain query, case-insensitively.
func (s *Store) SearchDocuments(query string) []Document {
	lowered := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []Document
	for _, doc := range s.documents {
		if documentMatches(doc, lowered) {
			result = append(result, *doc)
		}
	}
	sortDocuments(result)
	return result
}

// DocumentHistory resolves a document's recorded changes to their
// proposals, ordered by creation time.
func (s *Store) DocumentHistory(id string) ([]ChangeProposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", id, ErrDocumentNotFound)
	}
	var history []ChangeProposal
	for _, changeID := range doc.Changes {
		if change, ok := s.changes[changeID]; ok {
			history = append(history, *change)
		}
	}
	sortChanges(history)
	return history, nil
}

// --- Persistence helpers ---

func (s *Store) changePath(change *ChangeProposal) string {
	return filepath.Join(s.root, partitionFor(change.Status), change.ID+".yaml")
}

func (s *Store) documentPath(doc *Document) string {
	return filepath.Join(s.root, specPartition(doc.Type), doc.ID+".yaml")
}

func (s *Store) writeChange(change *ChangeProposal) error {
	data, err := yaml.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshaling change %q: %w", change.ID, err)
	}
	return os.WriteFile(s.changePath(change), data, 0o644)
}

func (s *Store) writeDocument(doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling document %q: %w", doc.ID, err)
	}
	return os.WriteFile(s.documentPath(doc), data, 0o644)
}

func (s *Store) loadChanges() error {
	for _, status := range []ChangeStatus{StatusProposed, StatusApproved, StatusRejected, StatusImplemented} {
		dir := filepath.Join(s.root, partitionFor(status))
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("reading partition %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				slog.Warn("skipping unreadable change file", "path", path, "error", err)
				continue
			}
			var change ChangeProposal
			if err := yaml.Unmarshal(data, &change); err != nil {
				slog.Warn("skipping malformed change file", "path", path, "error", err)
				continue
			}
			s.changes[change.ID] = &change
		}
	}
	return nil
}

func (s *Store) loadDocuments() error {
	for t := range validSpecTypes {
		dir := filepath.Join(s.root, specPartition(t))
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("reading spec partition %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				slog.Warn("skipping unreadable document file", "path", path, "error", err)
				continue
			}
			var doc Document
			if err := yaml.Unmarshal(data, &doc); err != nil {
				slog.Warn("skipping malformed document file", "path", path, "error", err)
				continue
			}
			s.documents[doc.ID] = &doc
		}
	}
	return nil
}

// --- Small helpers ---

func documentMatches(doc *Document, loweredQuery string) bool {
	if strings.Contains(strings.ToLower(doc.Title), loweredQuery) {
		return true
	}
	for _, v := range doc.Content {
		if strings.Contains(strings.ToLower(v), loweredQuery) {
			return true
		}
	}
	for _, tag := range doc.Tags {
		if strings.Contains(strings.ToLower(tag), loweredQuery) {
			return true
		}
	}
	return false
}

func sortChanges(list []ChangeProposal) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt < list[j].CreatedAt
		}
		return list[i].ID < list[j].ID
	})
}

func sortDocuments(list []Document) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt < list[j].CreatedAt
		}
		return list[i].ID < list[j].ID
	})
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}

// bumpPatch increments the patch component of a semantic version
// string, falling back to the input when it doesn't parse.
func bumpPatch(version string) string {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return version
	}
	patch, err := strconv.Atoi(parts[2])
	if err != nil {
		return version
	}
	return fmt.Sprintf("%s.%s.%d", parts[0], parts[1], patch+1)
}
