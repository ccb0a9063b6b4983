// Package persistence archives session trees on disk.
package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/mikekulinski/collab/pkg/synctree"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const SnapshotFilePrefix = "snapshot"

// SnapshotManager writes every snapshot to a new file in its directory, named
// "{dir}/snapshot_{session id}_{sequence}.json". Sequence numbers only grow, so a directory
// can be replayed in order.
type SnapshotManager struct {
	// mu guards every field below.
	mu      sync.Mutex
	dir     string
	LastSeq uint64
}

// NewSnapshotManager fails if dir is not an existing directory. Numbering resumes after the
// highest sequence already in dir.
func NewSnapshotManager(dir string) (*SnapshotManager, error) {
	dir = strings.TrimSuffix(dir, "/")
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", dir, err)
	}
	m := &SnapshotManager{dir: dir}
	for _, entry := range entries {
		if seq, ok := parseSeq(entry.Name()); ok && seq > m.LastSeq {
			m.LastSeq = seq
		}
	}
	return m, nil
}

func parseSeq(fileName string) (uint64, bool) {
	name, ok := strings.CutSuffix(fileName, ".json")
	if !ok || !strings.HasPrefix(name, SnapshotFilePrefix+"_") {
		return 0, false
	}
	i := strings.LastIndex(name, "_")
	seq, err := strconv.ParseUint(name[i+1:], 10, 64)
	return seq, err == nil
}

// Write stores the live elements of tree and returns the file it wrote.
func (m *SnapshotManager) Write(sessionID uint32, tree *synctree.Tree) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq := m.LastSeq + 1
	root, err := encodeElement(tree.Root())
	if err != nil {
		return "", err
	}
	snapshot := &structpb.Struct{Fields: map[string]*structpb.Value{
		"session": structpb.NewNumberValue(float64(sessionID)),
		"tree":    structpb.NewStringValue(tree.ID().String()),
		"seq":     structpb.NewStringValue(strconv.FormatUint(seq, 10)),
		"root":    root,
	}}
	text, err := protojson.MarshalOptions{Indent: "  "}.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("error marshaling snapshot: %w", err)
	}

	path := filepath.Join(m.dir, fmt.Sprintf("%s_%d_%d.json", SnapshotFilePrefix, sessionID, seq))
	if err := os.WriteFile(path, text, 0o644); err != nil {
		return "", fmt.Errorf("error writing snapshot: %w", err)
	}
	m.LastSeq = seq
	return path, nil
}

// Read loads a snapshot written by Write.
func Read(path string) (*structpb.Struct, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	snapshot := &structpb.Struct{}
	if err := protojson.Unmarshal(text, snapshot); err != nil {
		return nil, fmt.Errorf("error parsing snapshot %s: %w", path, err)
	}
	return snapshot, nil
}

func encodeElement(e synctree.Element) (*structpb.Value, error) {
	fields := map[string]*structpb.Value{
		"name": structpb.NewStringValue(e.Name()),
		"guid": structpb.NewStringValue(strconv.FormatInt(int64(e.GUID()), 10)),
		"kind": structpb.NewStringValue(e.Kind().String()),
	}
	switch e := e.(type) {
	case *synctree.ObjectElement:
		children := make([]*structpb.Value, 0, len(e.Children()))
		for _, child := range e.Children() {
			v, err := encodeElement(child)
			if err != nil {
				return nil, err
			}
			children = append(children, v)
		}
		fields["children"] = structpb.NewListValue(&structpb.ListValue{Values: children})
	case *synctree.IntElement:
		fields["value"] = structpb.NewNumberValue(float64(e.Value()))
	case *synctree.FloatElement:
		fields["value"] = structpb.NewNumberValue(float64(e.Value()))
	case *synctree.StringElement:
		fields["value"] = structpb.NewStringValue(e.Value())
	default:
		return nil, fmt.Errorf("unknown element kind %s", e.Kind())
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: fields}), nil
}
