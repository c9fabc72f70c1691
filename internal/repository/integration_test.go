//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"volunteer-hub/internal/model"
	"volunteer-hub/internal/repository"
	"volunteer-hub/pkg/database"
	pkgerrors "volunteer-hub/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup：真实 PostgreSQL + 内嵌迁移
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=volunteer_hub password=volunteer_hub_password dbname=volunteer_hub_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "执行迁移失败: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// setupTestData 创建一个已发布活动与一名志愿者，返回清理函数
func setupTestData(t *testing.T, maxVolunteers int) (*repository.Repository, *model.Event, *model.Volunteer, func()) {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewRepository(testDB)
	suffix := time.Now().UnixNano()

	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	event := &model.Event{
		Title:         fmt.Sprintf("集成测试活动-%d", suffix),
		StartTime:     start,
		EndTime:       start.Add(4 * time.Hour),
		MaxVolunteers: maxVolunteers,
		Urgency:       model.UrgencyNormal,
		Status:        model.EventStatusPublished,
	}
	if err := repo.Event.Create(ctx, event); err != nil {
		t.Fatalf("创建活动失败: %v", err)
	}

	volunteer := &model.Volunteer{
		Name:     "集成测试志愿者",
		Email:    fmt.Sprintf("it-%d@example.org", suffix),
		IsActive: true,
	}
	if err := repo.Volunteer.Create(ctx, volunteer); err != nil {
		t.Fatalf("创建志愿者失败: %v", err)
	}

	cleanup := func() {
		testDB.Unscoped().Where("event_id = ?", event.EventID).Delete(&model.ParticipationHistory{})
		testDB.Unscoped().Where("event_id = ?", event.EventID).Delete(&model.Assignment{})
		testDB.Unscoped().Where("event_id = ?", event.EventID).Delete(&model.Event{})
		testDB.Unscoped().Where("volunteer_id = ?", volunteer.VolunteerID).Delete(&model.Volunteer{})
	}
	return repo, event, volunteer, cleanup
}

// ═══════════════════════════════════════════════════════════
// Test: Transaction
// ═══════════════════════════════════════════════════════════

func TestTransaction_RollbackAssignment(t *testing.T) {
	repo, event, volunteer, cleanup := setupTestData(t, 3)
	defer cleanup()
	ctx := context.Background()

	err := repo.Transaction(ctx, func(tx *repository.Repository) error {
		a := &model.Assignment{EventID: event.EventID, VolunteerID: volunteer.VolunteerID, Status: model.AssignmentStatusConfirmed}
		if err := tx.Assignment.Create(ctx, a); err != nil {
			return err
		}
		return fmt.Errorf("模拟失败")
	})
	if err == nil {
		t.Fatal("期望事务返回错误")
	}

	if _, err := repo.Assignment.FindByPair(ctx, event.EventID, volunteer.VolunteerID); err != gorm.ErrRecordNotFound {
		t.Errorf("回滚后派遣应不存在，得到: %v", err)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: 行锁保证人数上限
// ═══════════════════════════════════════════════════════════

func TestGetByIDForUpdate_SerializesCapacity(t *testing.T) {
	repo, event, _, cleanup := setupTestData(t, 100)
	defer cleanup()
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Transaction(ctx, func(tx *repository.Repository) error {
				e, err := tx.Event.GetByIDForUpdate(ctx, event.EventID)
				if err != nil {
					return err
				}
				time.Sleep(5 * time.Millisecond)
				return tx.Event.UpdateCurrentVolunteers(ctx, e.EventID, e.CurrentVolunteers+1)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("事务失败: %v", err)
		}
	}

	got, err := repo.Event.GetByID(ctx, event.EventID)
	if err != nil {
		t.Fatalf("查询活动失败: %v", err)
	}
	if got.CurrentVolunteers != workers {
		t.Errorf("行锁应串行化读改写，期望 %d，得到 %d", workers, got.CurrentVolunteers)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: 唯一约束
// ═══════════════════════════════════════════════════════════

func TestHistoryUpsert_OnConflict(t *testing.T) {
	repo, event, volunteer, cleanup := setupTestData(t, 3)
	defer cleanup()
	ctx := context.Background()

	first := &model.ParticipationHistory{
		EventID:           event.EventID,
		VolunteerID:       volunteer.VolunteerID,
		Status:            model.ParticipationConfirmed,
		Attendance:        model.AttendancePresent,
		ParticipationDate: event.StartTime,
	}
	if err := repo.History.Upsert(ctx, first); err != nil {
		t.Fatalf("首次 Upsert 失败: %v", err)
	}

	second := &model.ParticipationHistory{
		EventID:           event.EventID,
		VolunteerID:       volunteer.VolunteerID,
		Status:            model.ParticipationCompleted,
		Attendance:        model.AttendancePresent,
		ParticipationDate: event.StartTime,
		HoursWorked:       3.25,
		Version:           first.Version,
	}
	if err := repo.History.Upsert(ctx, second); err != nil {
		t.Fatalf("第二次 Upsert 失败: %v", err)
	}
	if second.HistoryID != first.HistoryID {
		t.Errorf("冲突更新应保留原主键")
	}

	// first 已是旧快照
	first.Status = model.ParticipationNoShow
	if err := repo.History.Upsert(ctx, first); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("旧版本写入期望 ErrOptimisticLock，得到: %v", err)
	}

	list, err := repo.History.ListByEvent(ctx, event.EventID)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(list) != 1 || list[0].HoursWorked != 3.25 {
		t.Errorf("期望 1 条记录且工时为 3.25，得到 %+v", list)
	}
}

func TestAssignment_UniquePairConstraint(t *testing.T) {
	repo, event, volunteer, cleanup := setupTestData(t, 3)
	defer cleanup()
	ctx := context.Background()

	a := &model.Assignment{EventID: event.EventID, VolunteerID: volunteer.VolunteerID, Status: model.AssignmentStatusPending}
	if err := repo.Assignment.Create(ctx, a); err != nil {
		t.Fatalf("创建派遣失败: %v", err)
	}
	dup := &model.Assignment{EventID: event.EventID, VolunteerID: volunteer.VolunteerID, Status: model.AssignmentStatusPending}
	if err := repo.Assignment.Create(ctx, dup); err == nil {
		t.Fatal("重复派遣应违反 uk_assignment_pair")
	}
}
