package cmd

import (
	"github.com/zapdesk/pkg/config"
	"github.com/zapdesk/pkg/database"
	"github.com/zapdesk/pkg/server"
	"github.com/zapdesk/pkg/utils"
)

func StartApp() {
	config := config.InitConfig()
	utils.LoadEnv()
	database.InitDB(config.Database)
	server.LaunchHttpServer(config)
}
