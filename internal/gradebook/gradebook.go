// Package gradebook provides read access to per-student course records.
package gradebook

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// CourseRecord is a single graded item of a student in a course.
type CourseRecord struct {
	UID        int64  `bson:"uid"`
	Course     string `bson:"course"`
	Assignment string `bson:"assign"`
	Score      string `bson:"score"`
}

// Store gives access to course records.
type Store interface {
	// Courses returns the distinct course names of the student, sorted.
	Courses(ctx context.Context, uid int64) ([]string, error)

	// Records returns the records of the student in the given course.
	// An empty result is not an error.
	Records(ctx context.Context, uid int64, course string) ([]CourseRecord, error)
}

// ScoreLine is a line of a ScoreSheet.
type ScoreLine struct {
	Item  string
	Score float64
}

// ScoreSheet lists the scores of a student in a course.
type ScoreSheet struct {
	Course string
	Lines  []ScoreLine
	Total  float64
}

// NewScoreSheet builds a score sheet from the given records.
// An error is returned if a score is not a number.
func NewScoreSheet(course string, records []CourseRecord) (*ScoreSheet, error) {
	sheet := &ScoreSheet{Course: course}
	for _, r := range records {
		score, err := strconv.ParseFloat(strings.TrimSpace(r.Score), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid score %q for %q: %w", r.Score, r.Assignment, err)
		}
		sheet.Lines = append(sheet.Lines, ScoreLine{Item: r.Assignment, Score: score})
		sheet.Total += score
	}
	return sheet, nil
}

// distinctSorted returns the distinct course names of records, sorted.
func distinctSorted(records []CourseRecord) []string {
	seen := map[string]bool{}
	courses := []string{}
	for _, r := range records {
		if !seen[r.Course] {
			seen[r.Course] = true
			courses = append(courses, r.Course)
		}
	}
	sort.Strings(courses)
	return courses
}

// MemoryStore is a Store keeping records in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []CourseRecord
}

// NewMemoryStore creates a MemoryStore holding the given records.
func NewMemoryStore(records ...CourseRecord) *MemoryStore {
	return &MemoryStore{records: append([]CourseRecord(nil), records...)}
}

// Add adds records to the store.
func (s *MemoryStore) Add(records ...CourseRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
}

// Courses implements Store.
func (s *MemoryStore) Courses(ctx context.Context, uid int64) ([]string, error) {
	return distinctSorted(s.filter(uid, nil)), nil
}

// Records implements Store.
func (s *MemoryStore) Records(ctx context.Context, uid int64, course string) ([]CourseRecord, error) {
	return s.filter(uid, &course), nil
}

func (s *MemoryStore) filter(uid int64, course *string) []CourseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []CourseRecord
	for _, r := range s.records {
		if r.UID == uid && (course == nil || r.Course == *course) {
			res = append(res, r)
		}
	}
	return res
}
