package server

import (
	"strings"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/example/goshop/internal/auth"
	"github.com/example/goshop/internal/config"
	"github.com/example/goshop/internal/datamodels/order"
	"github.com/example/goshop/internal/errs"
	"github.com/example/goshop/internal/middleware"
	"github.com/example/goshop/internal/service"
)

// API 前台路由依赖的服务集合，由 main 构造后注入
type API struct {
	Users    *service.UserService
	Products *service.ProductService
	Orders   *service.OrderService
	Payments *service.PaymentService
	JWT      *config.JWTConfig
	Logger   *zap.Logger
}

// createOrderRequest 下单请求的声明式结构，边界处一次性校验，
// 之后核心逻辑只接触已校验的 CreateOrderInput。
type createOrderRequest struct {
	GuestInfo       *order.GuestInfo    `json:"guestInfo"`
	Items           []service.ItemInput `json:"items"`
	ShippingAddress order.Address       `json:"shippingAddress"`
	PaymentMethod   string              `json:"paymentMethod"`
}

type initPaymentRequest struct {
	OrderID int64 `json:"orderId"`
}

type verifyPaymentRequest struct {
	Reference string `json:"reference"`
}

// RegisterRoutes 注册前台 HTTP 路由
func RegisterRoutes(app *iris.Application, api *API) {
	rest := app.Party("/api")

	// 健康检查
	rest.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	// 用户注册/登录
	rest.Post("/register", func(ctx iris.Context) {
		var req struct {
			Email    string `json:"email"`
			Name     string `json:"name"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		u, err := api.Users.Register(ctx.Request().Context(), req.Email, req.Name, req.Password)
		if err != nil {
			fail(ctx, api.Logger, err)
			return
		}
		u.Password = ""
		u.Salt = ""
		ctx.JSON(iris.Map{"code": 0, "data": u})
	})

	rest.Post("/login", func(ctx iris.Context) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		token, err := api.Users.Login(ctx.Request().Context(), req.Email, req.Password)
		if err != nil {
			fail(ctx, api.Logger, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"token": token}})
	})

	// 商品列表（订单核心的外部协作方，只读）
	rest.Get("/products", func(ctx iris.Context) {
		category := ctx.URLParam("category")
		list, err := api.Products.ListByCategory(ctx.Request().Context(), category)
		if err != nil {
			fail(ctx, api.Logger, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// 下单：登录与否都可以，带 token 则订单挂到该用户名下
	rest.Post("/orders", optionalAuth(api.JWT), func(ctx iris.Context) {
		var req createOrderRequest
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}

		in := &service.CreateOrderInput{
			UserID:        ctx.Values().GetInt64Default("user_id", 0),
			Guest:         req.GuestInfo,
			Items:         req.Items,
			Address:       req.ShippingAddress,
			PaymentMethod: req.PaymentMethod,
		}
		o, err := api.Orders.Create(ctx.Request().Context(), in)
		if err != nil {
			fail(ctx, api.Logger, err)
			return
		}
		ctx.StatusCode(201)
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"order": o}})
	})

	rest.Get("/orders/{id:int64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetInt64("id")
		o, err := api.Orders.Get(ctx.Request().Context(), id)
		if err != nil {
			fail(ctx, api.Logger, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"order": o}})
	})

	// 登录用户查询自己的订单
	rest.Get("/orders", requireAuth(api.JWT), func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		list, err := api.Orders.ListByUser(ctx.Request().Context(), userID)
		if err != nil {
			fail(ctx, api.Logger, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// ---------------- 支付 ----------------

	payments := rest.Party("/payments/paystack")
	limiter := middleware.NewTokenBucket(20, 10)

	payments.Post("/init", middleware.RateLimit(limiter), func(ctx iris.Context) {
		var req initPaymentRequest
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if req.OrderID == 0 {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": "orderId is required"})
			return
		}
		res, err := api.Payments.InitPayment(ctx.Request().Context(), req.OrderID)
		if err != nil {
			fail(ctx, api.Logger, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": res})
	})

	payments.Post("/verify", middleware.RateLimit(limiter), func(ctx iris.Context) {
		var req verifyPaymentRequest
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if req.Reference == "" {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": "reference is required"})
			return
		}
		o, success, err := api.Payments.VerifyPayment(ctx.Request().Context(), req.Reference)
		if err != nil {
			fail(ctx, api.Logger, err)
			return
		}
		if !success {
			ctx.StopWithJSON(400, iris.Map{
				"code": 400,
				"msg":  "payment verification failed",
				"data": iris.Map{"status": "failed", "order": o},
			})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"status": "success", "order": o}})
	})

	// 回调不限流：处理器的重试不能被挡掉
	payments.Post("/webhook", func(ctx iris.Context) {
		body, err := ctx.GetBody()
		if err != nil {
			ctx.StopWithStatus(400)
			return
		}
		signature := ctx.GetHeader("x-paystack-signature")
		if err := api.Payments.HandleWebhook(ctx.Request().Context(), body, signature); err != nil {
			if errs.IsUnauthorized(err) {
				ctx.StopWithStatus(401)
				return
			}
			// 内部错误也回 200 以外的状态让处理器稍后重试
			api.Logger.Error("webhook handling failed", zap.Error(err))
			ctx.StopWithStatus(500)
			return
		}
		ctx.StatusCode(200)
	})
}

// fail 统一的错误出口：错误类型映射到 HTTP 状态码，
// 网关错误只回笼统提示，细节留在服务端日志里。
func fail(ctx iris.Context, logger *zap.Logger, err error) {
	switch {
	case errs.IsValidation(err):
		ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
	case errs.IsNotFound(err):
		ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": err.Error()})
	case errs.IsConflict(err):
		ctx.StopWithJSON(409, iris.Map{"code": 409, "msg": err.Error()})
	case errs.IsUnauthorized(err):
		ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": err.Error()})
	case errs.IsGateway(err):
		ctx.StopWithJSON(502, iris.Map{
			"code": 502,
			"msg":  "payment could not be started, please retry",
		})
	default:
		if logger != nil {
			logger.Error("internal error", zap.Error(err))
		}
		ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": "internal error"})
	}
}

// requireAuth 必须携带合法 token
func requireAuth(jwtCfg *config.JWTConfig) iris.Handler {
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
		ctx.Values().Set("user_id", claims.UserID)
		ctx.Values().Set("email", claims.Email)
		ctx.Next()
	}
}

// optionalAuth 带了 token 就解析，没带就按游客处理
func optionalAuth(jwtCfg *config.JWTConfig) iris.Handler {
	return func(ctx iris.Context) {
		token := bearerToken(ctx)
		if token != "" {
			if claims, err := auth.ParseToken(jwtCfg, token); err == nil {
				ctx.Values().Set("user_id", claims.UserID)
				ctx.Values().Set("email", claims.Email)
			}
		}
		ctx.Next()
	}
}

func bearerToken(ctx iris.Context) string {
	h := ctx.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}
