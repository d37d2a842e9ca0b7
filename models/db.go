package models

import (
	"database/sql"
	"database/sql/driver"
	"log"
	"os"
	"strings"
	"time"

	"CineDraft-server/config"

	_ "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *sql.DB
var GormDB *gorm.DB

func InitDB() {
	if config.AppConfig == nil {
		log.Fatal("config.AppConfig is nil, call config.InitConfig first")
	}
	dsn := config.AppConfig.MySQL.DSN
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("打开数据库失败: %v", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		log.Fatalf("连接数据库失败: %v", err)
	}

	DB = db
	GormDB, err = gorm.Open(mysql.New(mysql.Config{
		Conn: DB,
	}), &gorm.Config{})
	if err != nil {
		log.Fatalf("GORM 初始化失败: %v", err)
	}

	log.Println("数据库连接成功 (Native SQL + GORM)")

	// 自动建表（读取 doc/sql/CineDraft.sql）
	b, err := os.ReadFile("doc/sql/CineDraft.sql")
	if err != nil {
		log.Printf("读取 SQL 文件失败（跳过建表）: %v", err)
		return
	}
	sqls := strings.Split(string(b), ";")
	for _, s := range sqls {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := DB.Exec(s); err != nil {
			log.Printf("执行建表语句失败: %v ; sql: %s", err, s)
		}
	}
}

// CreateProject 新建项目记录
func CreateProject(p *Project) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	scriptJSON, err := jsonOrNull(p.Script)
	if err != nil {
		return err
	}
	logJSON, err := jsonOrNull(p.Log)
	if err != nil {
		return err
	}
	_, err = DB.Exec(
		`INSERT INTO project (id, title, mode, genre, style, style_custom, duration, duration_minutes, premise, status, progress, script, log, seed_frame, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Mode, p.Genre, p.Style, p.StyleCustom, p.Duration, p.DurationMinutes, p.Premise, p.Status, p.Progress, scriptJSON, logJSON, p.SeedFrame, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// SaveProject 幂等保存：同 id 再次保存时覆盖而不是新增
func SaveProject(p *Project) error {
	p.UpdatedAt = time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}
	scriptJSON, err := jsonOrNull(p.Script)
	if err != nil {
		return err
	}
	logJSON, err := jsonOrNull(p.Log)
	if err != nil {
		return err
	}
	_, err = DB.Exec(
		`INSERT INTO project (id, title, mode, genre, style, style_custom, duration, duration_minutes, premise, status, progress, script, log, seed_frame, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON DUPLICATE KEY UPDATE
           title = VALUES(title), mode = VALUES(mode), genre = VALUES(genre), style = VALUES(style),
           style_custom = VALUES(style_custom), duration = VALUES(duration), duration_minutes = VALUES(duration_minutes),
           premise = VALUES(premise), status = VALUES(status), progress = VALUES(progress),
           script = VALUES(script), log = VALUES(log), seed_frame = VALUES(seed_frame), updated_at = VALUES(updated_at)`,
		p.ID, p.Title, p.Mode, p.Genre, p.Style, p.StyleCustom, p.Duration, p.DurationMinutes, p.Premise, p.Status, p.Progress, scriptJSON, logJSON, p.SeedFrame, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// jsonOrNull 取 JSON 列的序列化值，未生成内容时写 NULL
func jsonOrNull(v driver.Valuer) (interface{}, error) {
	val, err := v.Value()
	if err != nil {
		return nil, err
	}
	return val, nil
}

// GetProjectByID 按 id 查询项目
func GetProjectByID(id string) (Project, error) {
	var p Project
	if err := GormDB.First(&p, "id = ?", id).Error; err != nil {
		return p, err
	}
	return p, nil
}

// ListProjects 按创建时间倒序返回全部项目
func ListProjects() ([]Project, error) {
	var list []Project
	if err := GormDB.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func DeleteProjectByID(id string) error {
	_, err := DB.Exec(`DELETE FROM project WHERE id = ?`, id)
	return err
}

// UpdateProjectSeedFrame 更新续作模式的种子帧
func UpdateProjectSeedFrame(id, frameURL string) error {
	_, err := DB.Exec(`UPDATE project SET seed_frame = ?, updated_at = ? WHERE id = ?`, frameURL, time.Now(), id)
	return err
}
