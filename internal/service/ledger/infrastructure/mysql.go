// internal/service/ledger/infrastructure/mysql.go
package infrastructure

import (
	"fmt"
	"time"

	driver "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MySQLOptions 是账本数据库的连接参数。
type MySQLOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// NewMySQL 打开账本数据库并迁移表结构。
// TranslateError 让唯一索引冲突以 gorm.ErrDuplicatedKey 暴露，
// 仓储据此映射到领域错误。
func NewMySQL(opts MySQLOptions) (*gorm.DB, error) {
	cfg := driver.Config{
		User:                 opts.User,
		Passwd:               opts.Password,
		Net:                  "tcp",
		Addr:                 fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		DBName:               opts.Database,
		ParseTime:            true,
		Loc:                  time.Local,
		AllowNativePasswords: true,
	}
	db, err := gorm.Open(gormmysql.Open(cfg.FormatDSN()), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate 迁移账本的全部表结构。测试里也会对 SQLite 调用。
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(&UserModel{}, &PromoCodeModel{}, &PaymentModel{}, &TicketModel{})
	return errors.Wrap(err, "auto migrate ledger schema")
}
