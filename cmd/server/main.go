package main

import (
	"github.com/rs/zerolog/log"

	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/chat"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/config"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/db"
	clog "github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/log"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/server"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/ws"
)

func main() {
	// main 函数负责加载配置、初始化日志、连接数据库并启动 Gin 服务。
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validate")
	}

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	reg := ws.NewRegistry()
	engine := chat.NewEngine(gdb, reg)
	r := server.SetupRouter(cfg, gdb, engine)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
