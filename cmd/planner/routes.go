package main

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	adjget "prod-planner/http-server/adjustments/get"
	adjsave "prod-planner/http-server/adjustments/save"
	adjupdate "prod-planner/http-server/adjustments/update"
	getadmin "prod-planner/http-server/admin/get"
	saveadmin "prod-planner/http-server/admin/save"
	upadmin "prod-planner/http-server/admin/update"
	batches "prod-planner/http-server/batches/update"
	generate_excel "prod-planner/http-server/generate-report/generate-excel"
	getmaterials "prod-planner/http-server/materials/get"
	savematerials "prod-planner/http-server/materials/save"
	getorder "prod-planner/http-server/orders/get"
	"prod-planner/http-server/orders/remove"
	saveorder "prod-planner/http-server/orders/save"
	uporder "prod-planner/http-server/orders/update"
	"prod-planner/http-server/planning/check"
	"prod-planner/internal/config"
	"prod-planner/internal/middleware/auth"
)

const frontendDir = "./frontend-dist"

func routes(cfg config.Config, log *slog.Logger, svc services) *chi.Mux {
	router := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	router.Use(corsHandler.Handler)

	router.Use(middleware.RequestID)
	//ip пользователя
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(svc.metrics.Middleware)

	router.Handle("/metrics", svc.metrics.Handler())

	// Проверка заказа без записи
	router.Post("/api/planning/check", check.CheckOrder(log, svc.planning))

	// Заказы
	router.Get("/api/orders", getorder.GetOrders(log, svc.planning))
	router.Post("/api/orders", saveorder.CreateOrder(log, svc.planning))
	router.Post("/api/orders/split", saveorder.ConfirmSplit(log, svc.planning))
	router.Get("/api/plan", getorder.GetOverview(log, svc.planning))

	router.Route("/api/orders/{id}", func(r chi.Router) {
		r.Get("/", getorder.GetOrder(log, svc.planning))
		r.Put("/", uporder.UpdateOrder(log, svc.planning))
		r.Delete("/", remove.DeleteOrder(log, svc.planning))
		r.Post("/pause", uporder.PauseOrder(log, svc.execution))
		r.Post("/resume", uporder.ResumeOrder(log, svc.execution))

		// Выполнение партий на производстве
		r.Route("/batches/{batchID}", func(r chi.Router) {
			r.Post("/start", batches.StartBatch(log, svc.execution))
			r.Post("/weighing", batches.FinishWeighing(log, svc.execution))
			r.Post("/consumption", batches.RecordConsumption(log, svc.execution))
			r.Put("/nirs", batches.SetNirs(log, svc.execution))
			r.Put("/sampling", batches.SetSampling(log, svc.execution))
			r.Post("/complete", batches.CompleteBatch(log, svc.execution))
			r.Post("/production", batches.RegisterProduction(log, svc.execution))
		})
	})

	router.Post("/api/consumption/{entryID}/annul", batches.AnnulConsumption(log, svc.execution))
	router.Post("/api/production/{entryID}/annul", batches.AnnulProduction(log, svc.execution))

	// Корректировки
	router.Get("/api/adjustments", adjget.GetAdjustments(log, svc.adjustment))
	router.Post("/api/adjustments", adjsave.CreateAdjustment(log, svc.adjustment))
	router.Route("/api/adjustments/{adjID}", func(r chi.Router) {
		r.Get("/", adjget.GetAdjustment(log, svc.adjustment))
		r.Put("/container", adjupdate.AssignContainer(log, svc.adjustment))
		r.Post("/draw/auto", adjupdate.AutoDraw(log, svc.adjustment))
		r.Post("/draw/manual", adjupdate.ManualDraw(log, svc.adjustment))
		r.Post("/processing", adjupdate.StartProcessing(log, svc.adjustment))
		r.Post("/complete", adjupdate.CompleteAdjustment(log, svc.adjustment))
	})

	//Материалы на складе
	router.Get("/api/materials", getmaterials.GetMaterials(log, svc.stock))
	router.Get("/api/materials/fefo", getmaterials.GetPickList(log, svc.stock))

	// Рецептуры для выбора в заказе
	router.Get("/api/recipes", getadmin.GetRecipesAdmin(log, svc.recipes))

	router.Get("/api/report/excel", generate_excel.GenerateReportExcel(log, svc.excel))

	adminRouter := chi.NewRouter()
	adminRouter.Use(auth.BasicAuth(cfg.AdminLogin, cfg.AdminPass))

	adminRouter.Get("/recipes", getadmin.GetRecipesAdmin(log, svc.recipes))
	adminRouter.Get("/recipes/{id}", getadmin.GetRecipeAdmin(log, svc.recipes))
	adminRouter.Post("/recipes", saveadmin.SaveRecipeAdmin(log, svc.recipes))
	adminRouter.Put("/recipes/{id}", upadmin.UpdateRecipeAdmin(log, svc.recipes))
	adminRouter.Post("/recipes/{id}/deactivate", upadmin.DeactivateRecipeAdmin(log, svc.recipes))
	// синхронизация паллет из складской системы
	adminRouter.Put("/stock/units/{unitID}", savematerials.PutStockUnit(log, svc.stock))

	router.Mount("/api/admin", adminRouter)

	mountFrontend(router, cfg, log)

	return router
}

// mountFrontend раздаёт собранный фронтенд, если он лежит рядом с бинарником.
func mountFrontend(router *chi.Mux, cfg config.Config, log *slog.Logger) {
	if _, err := os.Stat(frontendDir); os.IsNotExist(err) {
		log.Warn("Папка фронтенда не найдена, отдаём только API", "path", frontendDir)
		return
	}

	fileServer := http.StripPrefix("/", http.FileServer(http.Dir(frontendDir)))

	router.Handle("/assets/*", fileServer)
	router.Handle("/js/*", fileServer)
	router.Handle("/css/*", fileServer)
	router.Handle("/img/*", fileServer)

	router.With(auth.BasicAuth(cfg.AdminLogin, cfg.AdminPass)).Handle("/admin/*",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, filepath.Join(frontendDir, "index.html"))
		}),
	)

	//SPA fallback: любой другой путь → index.html
	router.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(frontendDir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			http.ServeFile(w, r, path)
			return
		}
		http.ServeFile(w, r, filepath.Join(frontendDir, "index.html"))
	})
}
