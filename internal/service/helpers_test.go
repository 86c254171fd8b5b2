package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/univia/univia-go-api/internal/dto"
	"github.com/univia/univia-go-api/internal/models"
	"github.com/univia/univia-go-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type memoryExamRepo struct {
	exams  map[uint]models.Exam
	nextID uint
}

func newMemoryExamRepo() *memoryExamRepo {
	return &memoryExamRepo{exams: make(map[uint]models.Exam), nextID: 1}
}

func (m *memoryExamRepo) ListByCourse(ctx context.Context, courseID uint) ([]models.Exam, error) {
	results := make([]models.Exam, 0, len(m.exams))
	for id := uint(1); id < m.nextID; id++ {
		exam, ok := m.exams[id]
		if ok && exam.CourseID == courseID {
			results = append(results, exam)
		}
	}
	return results, nil
}

func (m *memoryExamRepo) GetByID(ctx context.Context, id uint) (models.Exam, error) {
	exam, ok := m.exams[id]
	if !ok {
		return models.Exam{}, gorm.ErrRecordNotFound
	}
	return exam, nil
}

func (m *memoryExamRepo) GetByIDWithQuestions(ctx context.Context, id uint) (models.Exam, error) {
	return m.GetByID(ctx, id)
}

func (m *memoryExamRepo) Create(ctx context.Context, exam *models.Exam) error {
	exam.ID = m.nextID
	exam.CreatedAt = time.Now()
	exam.UpdatedAt = time.Now()
	m.exams[exam.ID] = *exam
	m.nextID++
	return nil
}

func (m *memoryExamRepo) Update(ctx context.Context, exam *models.Exam) error {
	if _, ok := m.exams[exam.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	exam.UpdatedAt = time.Now()
	m.exams[exam.ID] = *exam
	return nil
}

func (m *memoryExamRepo) Delete(ctx context.Context, id uint) error {
	if _, ok := m.exams[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.exams, id)
	return nil
}

type memoryQuestionRepo struct {
	questions map[uint]models.ExamQuestion
	nextID    uint
	optionID  uint
}

func newMemoryQuestionRepo() *memoryQuestionRepo {
	return &memoryQuestionRepo{questions: make(map[uint]models.ExamQuestion), nextID: 1, optionID: 1}
}

func (m *memoryQuestionRepo) GetByID(ctx context.Context, id uint) (models.ExamQuestion, error) {
	question, ok := m.questions[id]
	if !ok {
		return models.ExamQuestion{}, gorm.ErrRecordNotFound
	}
	return question, nil
}

func (m *memoryQuestionRepo) ListByExam(ctx context.Context, examID uint) ([]models.ExamQuestion, error) {
	results := make([]models.ExamQuestion, 0, len(m.questions))
	for id := uint(1); id < m.nextID; id++ {
		question, ok := m.questions[id]
		if ok && question.ExamID == examID {
			results = append(results, question)
		}
	}
	return results, nil
}

func (m *memoryQuestionRepo) CountByExam(ctx context.Context, examID uint) (int64, error) {
	var count int64
	for _, question := range m.questions {
		if question.ExamID == examID {
			count++
		}
	}
	return count, nil
}

func (m *memoryQuestionRepo) Create(ctx context.Context, question *models.ExamQuestion) error {
	question.ID = m.nextID
	for i := range question.Options {
		question.Options[i].ID = m.optionID
		question.Options[i].QuestionID = question.ID
		m.optionID++
	}
	m.questions[question.ID] = *question
	m.nextID++
	return nil
}

func (m *memoryQuestionRepo) Update(ctx context.Context, question *models.ExamQuestion) error {
	if _, ok := m.questions[question.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.questions[question.ID] = *question
	return nil
}

func (m *memoryQuestionRepo) ReplaceOptions(ctx context.Context, questionID uint, options []models.MCQOption) error {
	question, ok := m.questions[questionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range options {
		options[i].ID = m.optionID
		options[i].QuestionID = questionID
		m.optionID++
	}
	question.Options = options
	m.questions[questionID] = question
	return nil
}

func (m *memoryQuestionRepo) Delete(ctx context.Context, id uint) error {
	if _, ok := m.questions[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.questions, id)
	return nil
}

type memorySubmissionRepo struct {
	submissions map[uint]models.ExamSubmission
	deleted     map[uint]bool
	nextID      uint
	answerID    uint
}

func newMemorySubmissionRepo() *memorySubmissionRepo {
	return &memorySubmissionRepo{
		submissions: make(map[uint]models.ExamSubmission),
		deleted:     make(map[uint]bool),
		nextID:      1,
		answerID:    1,
	}
}

func (m *memorySubmissionRepo) GetByExamAndStudent(ctx context.Context, examID, studentID uint) (models.ExamSubmission, error) {
	for id, submission := range m.submissions {
		if m.deleted[id] {
			continue
		}
		if submission.ExamID == examID && submission.StudentID == studentID {
			return submission, nil
		}
	}
	return models.ExamSubmission{}, gorm.ErrRecordNotFound
}

func (m *memorySubmissionRepo) GetByID(ctx context.Context, id uint) (models.ExamSubmission, error) {
	submission, ok := m.submissions[id]
	if !ok || m.deleted[id] {
		return models.ExamSubmission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (m *memorySubmissionRepo) GetByIDUnscoped(ctx context.Context, id uint) (models.ExamSubmission, error) {
	submission, ok := m.submissions[id]
	if !ok {
		return models.ExamSubmission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (m *memorySubmissionRepo) ExistsForExam(ctx context.Context, examID uint) (bool, error) {
	// Soft-deleted rows still count; the exam stays frozen.
	for _, submission := range m.submissions {
		if submission.ExamID == examID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memorySubmissionRepo) AttemptExists(ctx context.Context, examID, studentID uint) (bool, error) {
	// Soft-deleted rows count here too.
	for _, submission := range m.submissions {
		if submission.ExamID == examID && submission.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memorySubmissionRepo) ListByStudentAndExams(ctx context.Context, studentID uint, examIDs []uint) ([]models.ExamSubmission, error) {
	wanted := make(map[uint]bool, len(examIDs))
	for _, id := range examIDs {
		wanted[id] = true
	}
	results := make([]models.ExamSubmission, 0, len(m.submissions))
	for id, submission := range m.submissions {
		if m.deleted[id] {
			continue
		}
		if submission.StudentID == studentID && wanted[submission.ExamID] {
			results = append(results, submission)
		}
	}
	return results, nil
}

func (m *memorySubmissionRepo) Create(ctx context.Context, submission *models.ExamSubmission) error {
	// The unique (exam_id, student_id) index rejects a second attempt even
	// when the first row is soft-deleted.
	for _, existing := range m.submissions {
		if existing.ExamID == submission.ExamID && existing.StudentID == submission.StudentID {
			return gorm.ErrDuplicatedKey
		}
	}
	submission.ID = m.nextID
	submission.CreatedAt = time.Now()
	m.submissions[submission.ID] = *submission
	m.nextID++
	return nil
}

func (m *memorySubmissionRepo) Finalize(ctx context.Context, submission *models.ExamSubmission, answers []models.ExamAnswer) error {
	if _, ok := m.submissions[submission.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range answers {
		answers[i].ID = m.answerID
		m.answerID++
	}
	submission.Answers = answers
	m.submissions[submission.ID] = *submission
	return nil
}

func (m *memorySubmissionRepo) SoftDelete(ctx context.Context, id uint) error {
	if _, ok := m.submissions[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.deleted[id] = true
	return nil
}

func (m *memorySubmissionRepo) Restore(ctx context.Context, id uint) error {
	if _, ok := m.submissions[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.deleted, id)
	return nil
}

type memoryEnrollmentRepo struct {
	enrollments map[uint]models.Enrollment
	updates     int
}

func newMemoryEnrollmentRepo() *memoryEnrollmentRepo {
	return &memoryEnrollmentRepo{enrollments: make(map[uint]models.Enrollment)}
}

func (m *memoryEnrollmentRepo) add(enrollment models.Enrollment) {
	m.enrollments[enrollment.ID] = enrollment
}

func (m *memoryEnrollmentRepo) GetByStudentAndCourse(ctx context.Context, studentID, courseID uint) (models.Enrollment, error) {
	for _, enrollment := range m.enrollments {
		if enrollment.StudentID == studentID && enrollment.CourseID == courseID {
			return enrollment, nil
		}
	}
	return models.Enrollment{}, gorm.ErrRecordNotFound
}

func (m *memoryEnrollmentRepo) Update(ctx context.Context, enrollment *models.Enrollment) error {
	if _, ok := m.enrollments[enrollment.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.enrollments[enrollment.ID] = *enrollment
	m.updates++
	return nil
}

type memoryActivityRepo struct {
	entries []models.ActivityLog
	nextID  uint
}

func newMemoryActivityRepo() *memoryActivityRepo {
	return &memoryActivityRepo{nextID: 1}
}

func (m *memoryActivityRepo) Create(ctx context.Context, entry *models.ActivityLog) error {
	entry.ID = m.nextID
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	m.nextID++
	return nil
}

func (m *memoryActivityRepo) List(ctx context.Context, filter repository.ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	filtered := make([]models.ActivityLog, 0, len(m.entries))
	for _, entry := range m.entries {
		if filter.ActorID != nil && entry.ActorID != *filter.ActorID {
			continue
		}
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.EntityType != "" && entry.EntityType != filter.EntityType {
			continue
		}
		filtered = append(filtered, entry)
	}

	total := int64(len(filtered))
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		start := (page - 1) * filter.PageSize
		if start >= len(filtered) {
			return []models.ActivityLog{}, total, nil
		}
		end := start + filter.PageSize
		if end > len(filtered) {
			end = len(filtered)
		}
		filtered = filtered[start:end]
	}

	return filtered, total, nil
}

type recorderStub struct {
	entries []ActivityEntry
}

func (r *recorderStub) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	r.entries = append(r.entries, entry)
	return dto.ActivityResponse{}, nil
}

type stubPublisher struct {
	subjects []string
}

func (p *stubPublisher) Publish(ctx context.Context, subject string, payload interface{}) error {
	p.subjects = append(p.subjects, subject)
	return nil
}
