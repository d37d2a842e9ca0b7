package main

import (
	"fmt"
	"log"

	"CineDraft-server/config"
	"CineDraft-server/models"
	"CineDraft-server/routers"
	"CineDraft-server/service"

	"github.com/joho/godotenv"
)

func main() {
	// .env 可选，主要用于本地注入 CINEDRAFT_API_KEY
	if err := godotenv.Load(); err != nil {
		log.Printf(".env 未加载: %v", err)
	}

	config.InitConfig()
	fmt.Println("Server starting on port", config.AppConfig.Server.Port)
	models.InitDB()
	fmt.Println("Database initialized")

	service.InitQueue()
	fmt.Println("Queue initialized")

	service.InitMinIO()
	fmt.Println("MinIO initialized")

	processor := service.NewProcessor()
	processor.StartProcessor()

	r := routers.InitRouter()
	r.Run(config.AppConfig.Server.Port)
}
