package mysql

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/example/goshop/internal/config"
	"github.com/example/goshop/internal/datamodels/order"
	"github.com/example/goshop/internal/datamodels/product"
	"github.com/example/goshop/internal/datamodels/user"
)

// Open 建立 MySQL 连接并自动迁移表结构。
// 返回的句柄由调用方持有并注入各仓储，进程退出前调用 Close 释放。
func Open(cfg *config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err = db.AutoMigrate(
		&user.User{},
		&product.Product{},
		&order.Order{},
		&order.LineItem{},
	); err != nil {
		return nil, err
	}
	return db, nil
}

// Close 关闭底层连接池
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
