package server

import (
	"github.com/kataras/iris/v12"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/goshop/internal/auth"
	"github.com/example/goshop/internal/config"
	"github.com/example/goshop/internal/datamodels/product"
	"github.com/example/goshop/internal/service"
)

// AdminAPI 后台路由依赖的服务集合
type AdminAPI struct {
	Orders   *service.OrderService
	Products *service.ProductService
	Stock    *service.StockService
	Gatherer prometheus.Gatherer
	JWT      *config.JWTConfig
	Logger   *zap.Logger
}

// RegisterAdminRoutes 注册后台管理端路由。
// 后台与前台分端口部署，所有接口要求管理员 token。
func RegisterAdminRoutes(app *iris.Application, admin *AdminAPI) {
	app.Get("/metrics", iris.FromStd(promhttp.HandlerFor(admin.Gatherer, promhttp.HandlerOpts{})))

	rest := app.Party("/api", requireAdmin(admin.JWT))

	// ---------- 订单管理 ----------

	rest.Get("/orders", func(ctx iris.Context) {
		limit := ctx.URLParamIntDefault("limit", 20)
		list, err := admin.Orders.ListRecent(ctx.Request().Context(), limit)
		if err != nil {
			fail(ctx, admin.Logger, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	rest.Get("/orders/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		o, err := admin.Orders.Get(ctx.Request().Context(), id)
		if err != nil {
			fail(ctx, admin.Logger, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	// 更新履约状态（发货/送达/取消）
	rest.Post("/orders/{id:int64}/status", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		var req struct {
			Status string `json:"status"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := admin.Orders.UpdateStatus(ctx.Request().Context(), id, req.Status); err != nil {
			fail(ctx, admin.Logger, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "updated"})
	})

	// 退款标记（实际打款走网关后台，这里只改台账）
	rest.Post("/orders/{id:int64}/refund", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		if err := admin.Orders.MarkRefunded(ctx.Request().Context(), id); err != nil {
			fail(ctx, admin.Logger, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "refunded"})
	})

	// 手工补触发库存扣减（worker 消息丢失时的兜底，幂等）
	rest.Post("/orders/{id:int64}/restock", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		if err := admin.Stock.DecrementForOrder(ctx.Request().Context(), id); err != nil {
			fail(ctx, admin.Logger, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "stock decremented"})
	})

	// ---------- 商品管理 ----------

	rest.Get("/products", func(ctx iris.Context) {
		list, err := admin.Products.ListByCategory(ctx.Request().Context(), "all")
		if err != nil {
			fail(ctx, admin.Logger, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	rest.Post("/products", func(ctx iris.Context) {
		var p product.Product
		if err := ctx.ReadJSON(&p); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := admin.Products.Create(ctx.Request().Context(), &p); err != nil {
			fail(ctx, admin.Logger, err)
			return
		}
		ctx.StatusCode(201)
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	rest.Put("/products/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		var p product.Product
		if err := ctx.ReadJSON(&p); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		p.ID = id
		if err := admin.Products.Update(ctx.Request().Context(), &p); err != nil {
			fail(ctx, admin.Logger, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	rest.Delete("/products/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		if err := admin.Products.Delete(ctx.Request().Context(), id); err != nil {
			fail(ctx, admin.Logger, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "deleted"})
	})

	// ---------- 监控 ----------

	// 指标的 JSON 快照，方便不接 Prometheus 时肉眼看
	rest.Get("/monitor", func(ctx iris.Context) {
		fams, err := admin.Gatherer.Gather()
		if err != nil {
			fail(ctx, admin.Logger, err)
			return
		}
		out := map[string]float64{}
		for _, f := range fams {
			for _, m := range f.GetMetric() {
				name := f.GetName()
				for _, l := range m.GetLabel() {
					name += "{" + l.GetName() + "=" + l.GetValue() + "}"
				}
				if c := m.GetCounter(); c != nil {
					out[name] = c.GetValue()
				}
			}
		}
		ctx.JSON(iris.Map{"code": 0, "data": out})
	})
}

// requireAdmin 要求携带管理员 token
func requireAdmin(jwtCfg *config.JWTConfig) iris.Handler {
	return func(ctx iris.Context) {
		token := bearerToken(ctx)
		if token == "" {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "missing token"})
			return
		}
		claims, err := auth.ParseToken(jwtCfg, token)
		if err != nil {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "invalid token"})
			return
		}
		if !claims.Admin {
			ctx.StopWithJSON(403, iris.Map{"code": 403, "msg": "admin only"})
			return
		}
		ctx.Values().Set("user_id", claims.UserID)
		ctx.Next()
	}
}
