package models

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// newMockDB 用 sqlmock 顶替包级连接，返回期望句柄和还原函数
func newMockDB(t *testing.T) (sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	oldDB, oldGorm := DB, GormDB
	DB, GormDB = db, gdb
	return mock, func() {
		DB, GormDB = oldDB, oldGorm
		db.Close()
	}
}

func TestSaveProject_UpsertOverwrites(t *testing.T) {
	mock, restore := newMockDB(t)
	defer restore()

	p := Project{
		ID:     "proj-1",
		Title:  "霓虹追击",
		Mode:   ModeStoryboard,
		Status: ProjectStatusDraft,
	}

	// 两次保存同一 id 都走同一条 upsert，第二次覆盖而不是 INSERT 冲突
	mock.ExpectExec("INSERT INTO project .+ ON DUPLICATE KEY UPDATE .+").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, SaveProject(&p))
	created := p.CreatedAt
	assert.False(t, created.IsZero())

	p.Status = ProjectStatusCompleted
	p.Progress = 100
	mock.ExpectExec("INSERT INTO project .+ ON DUPLICATE KEY UPDATE .+").
		WillReturnResult(sqlmock.NewResult(0, 2))
	assert.NoError(t, SaveProject(&p))

	// created_at 不随二次保存漂移
	assert.Equal(t, created, p.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProjects_NewestFirst(t *testing.T) {
	mock, restore := newMockDB(t)
	defer restore()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "title", "status", "progress", "created_at"}).
		AddRow("proj-new", "新作", ProjectStatusDraft, 0, now).
		AddRow("proj-old", "旧作", ProjectStatusCompleted, 100, now.Add(-time.Hour))
	mock.ExpectQuery("SELECT \\* FROM `project` ORDER BY created_at DESC").
		WillReturnRows(rows)

	list, err := ListProjects()
	assert.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, "proj-new", list[0].ID)
	assert.Equal(t, "proj-old", list[1].ID)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}
