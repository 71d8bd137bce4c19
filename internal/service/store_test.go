package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fitsync/lesson-scheduler/internal/model"
)

// memStore is an in-memory Store used by the service tests. InTx just runs
// the callback against the same store: the guarantees under test are the
// services' check-then-act sequences, not postgres semantics.
type memStore struct {
	mu        sync.Mutex
	schedules map[int64]*model.Schedule
	waitings  map[int64]*model.ScheduleWaiting
	courses   map[int64]*model.Course
	mappings  []*model.TrainerMemberMapping
	nextID    int64
}

func newMemStore() *memStore {
	return &memStore{
		schedules: make(map[int64]*model.Schedule),
		waitings:  make(map[int64]*model.ScheduleWaiting),
		courses:   make(map[int64]*model.Course),
	}
}

func (m *memStore) Schedules() ScheduleRepository { return &memSchedules{m} }
func (m *memStore) Waitings() WaitingRepository   { return &memWaitings{m} }
func (m *memStore) Courses() CourseRepository     { return &memCourses{m} }
func (m *memStore) Mappings() MappingRepository   { return &memMappings{m} }

// InTx serializes units of work the way the slot row lock does in postgres.
func (m *memStore) InTx(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m)
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

// --- seeding helpers ---

func (m *memStore) addSchedule(trainerID int64, start time.Time, state model.SlotState) *model.Schedule {
	sched := &model.Schedule{
		ID:        m.id(),
		TrainerID: trainerID,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		State:     state,
		CreatedAt: start.Add(-30 * 24 * time.Hour),
	}
	m.schedules[sched.ID] = sched
	return sched
}

func (m *memStore) addCourse(memberID int64, remain int, createdAt time.Time) *model.Course {
	course := &model.Course{
		ID:              m.id(),
		MemberID:        memberID,
		RemainLessonCnt: remain,
		CreatedAt:       createdAt,
	}
	m.courses[course.ID] = course
	return course
}

func (m *memStore) addMapping(trainerID, memberID int64, createdAt time.Time) {
	m.mappings = append(m.mappings, &model.TrainerMemberMapping{
		ID:        m.id(),
		TrainerID: trainerID,
		MemberID:  memberID,
		CreatedAt: createdAt,
	})
}

func (m *memStore) addWaiting(scheduleID, memberID int64, createdAt time.Time) *model.ScheduleWaiting {
	w := &model.ScheduleWaiting{
		ID:         m.id(),
		ScheduleID: scheduleID,
		MemberID:   memberID,
		CreatedAt:  createdAt,
	}
	m.waitings[w.ID] = w
	return w
}

func (m *memStore) listSchedules(match func(*model.Schedule) bool) []*model.Schedule {
	var out []*model.Schedule
	for _, sched := range m.schedules {
		if match(sched) {
			copied := *sched
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (m *memStore) listWaitings(match func(*model.ScheduleWaiting) bool) []*model.ScheduleWaiting {
	var out []*model.ScheduleWaiting
	for _, w := range m.waitings {
		if !w.DelYn && match(w) {
			copied := *w
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func matchesCond(sched *model.Schedule, cond model.ScheduleSearchCond) bool {
	if cond.LessonMonth != "" && sched.StartTime.Format("200601") != cond.LessonMonth {
		return false
	}
	if cond.StartDt != nil && cond.EndDt != nil {
		date := sched.LessonDate()
		if date.Before(*cond.StartDt) || date.After(*cond.EndDt) {
			return false
		}
	}
	return true
}

// --- ScheduleRepository ---

type memSchedules struct{ m *memStore }

func (r *memSchedules) Create(ctx context.Context, sched *model.Schedule) error {
	sched.ID = r.m.id()
	copied := *sched
	r.m.schedules[sched.ID] = &copied
	return nil
}

func (r *memSchedules) SoftDelete(ctx context.Context, scheduleID int64) error {
	return r.UpdateState(ctx, scheduleID, model.Deleted())
}

func (r *memSchedules) GetForUpdate(ctx context.Context, scheduleID int64) (*model.Schedule, error) {
	sched, ok := r.m.schedules[scheduleID]
	if !ok {
		return nil, nil
	}
	copied := *sched
	return &copied, nil
}

func (r *memSchedules) UpdateState(ctx context.Context, scheduleID int64, state model.SlotState) error {
	sched, ok := r.m.schedules[scheduleID]
	if !ok {
		return fmt.Errorf("schedule %d not found", scheduleID)
	}
	sched.State = state
	return nil
}

func (r *memSchedules) ListByTrainer(ctx context.Context, trainerID int64, cond model.ScheduleSearchCond) ([]*model.Schedule, error) {
	return r.m.listSchedules(func(s *model.Schedule) bool {
		return s.TrainerID == trainerID && !s.State.IsDeleted() && matchesCond(s, cond)
	}), nil
}

func (r *memSchedules) ListByApplicant(ctx context.Context, memberID int64) ([]*model.Schedule, error) {
	return r.m.listSchedules(func(s *model.Schedule) bool {
		applicant, ok := s.State.Applicant()
		return ok && applicant == memberID
	}), nil
}

func (r *memSchedules) ListUpcomingByApplicant(ctx context.Context, memberID int64, from time.Time, cond model.ScheduleSearchCond) ([]*model.Schedule, error) {
	return r.m.listSchedules(func(s *model.Schedule) bool {
		applicant, ok := s.State.Applicant()
		return ok && applicant == memberID && !s.StartTime.Before(from) && matchesCond(s, cond)
	}), nil
}

func (r *memSchedules) FirstUpcomingByApplicant(ctx context.Context, memberID int64, from time.Time) (*model.Schedule, error) {
	list, _ := r.ListUpcomingByApplicant(ctx, memberID, from, model.ScheduleSearchCond{})
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// --- WaitingRepository ---

type memWaitings struct{ m *memStore }

func (r *memWaitings) Create(ctx context.Context, w *model.ScheduleWaiting) error {
	w.ID = r.m.id()
	copied := *w
	r.m.waitings[w.ID] = &copied
	return nil
}

func (r *memWaitings) ActiveByScheduleAndMember(ctx context.Context, scheduleID, memberID int64) (*model.ScheduleWaiting, error) {
	list := r.m.listWaitings(func(w *model.ScheduleWaiting) bool {
		return w.ScheduleID == scheduleID && w.MemberID == memberID
	})
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (r *memWaitings) ListActiveBySchedule(ctx context.Context, scheduleID int64) ([]*model.ScheduleWaiting, error) {
	return r.m.listWaitings(func(w *model.ScheduleWaiting) bool { return w.ScheduleID == scheduleID }), nil
}

func (r *memWaitings) ListActiveByMember(ctx context.Context, memberID int64) ([]*model.ScheduleWaiting, error) {
	return r.m.listWaitings(func(w *model.ScheduleWaiting) bool { return w.MemberID == memberID }), nil
}

func (r *memWaitings) CountActiveBySchedules(ctx context.Context, scheduleIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int)
	for _, id := range scheduleIDs {
		n := len(r.m.listWaitings(func(w *model.ScheduleWaiting) bool { return w.ScheduleID == id }))
		if n > 0 {
			counts[id] = n
		}
	}
	return counts, nil
}

func (r *memWaitings) SoftDelete(ctx context.Context, id int64) error {
	w, ok := r.m.waitings[id]
	if !ok || w.DelYn {
		return fmt.Errorf("waiting entry %d not found or already deleted", id)
	}
	w.DelYn = true
	return nil
}

// --- CourseRepository ---

type memCourses struct{ m *memStore }

func (r *memCourses) courseFor(memberID int64, usableOnly bool) *model.Course {
	var latest *model.Course
	for _, c := range r.m.courses {
		if c.MemberID != memberID {
			continue
		}
		if usableOnly && !c.Usable() {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil
	}
	copied := *latest
	return &copied
}

func (r *memCourses) CurrentByMember(ctx context.Context, memberID int64) (*model.Course, error) {
	return r.courseFor(memberID, true), nil
}

func (r *memCourses) LatestByMember(ctx context.Context, memberID int64) (*model.Course, error) {
	return r.courseFor(memberID, false), nil
}

func (r *memCourses) Debit(ctx context.Context, courseID int64) (bool, error) {
	course, ok := r.m.courses[courseID]
	if !ok || !course.Usable() {
		return false, nil
	}
	course.RemainLessonCnt--
	return true, nil
}

func (r *memCourses) Credit(ctx context.Context, courseID int64) error {
	course, ok := r.m.courses[courseID]
	if !ok {
		return fmt.Errorf("course %d not found", courseID)
	}
	course.RemainLessonCnt++
	return nil
}

// --- MappingRepository ---

type memMappings struct{ m *memStore }

func (r *memMappings) CurrentByMember(ctx context.Context, memberID int64) (*model.TrainerMemberMapping, error) {
	var latest *model.TrainerMemberMapping
	for _, mp := range r.m.mappings {
		if mp.MemberID != memberID {
			continue
		}
		if latest == nil || mp.CreatedAt.After(latest.CreatedAt) {
			latest = mp
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}
