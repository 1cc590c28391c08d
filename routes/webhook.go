package routes

import (
	"io"
	"log"

	"github.com/kataras/iris/v12"
)

// Webhook endpoints always answer 200. A non-2xx response makes providers
// retry forever, and our handlers are idempotent anyway; real processing
// problems are logged, not surfaced to the provider.

func FedaPayWebhook(ctx iris.Context) {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		log.Printf("fedapay webhook body read: %v", err)
		ctx.JSON(iris.Map{"received": true})
		return
	}

	signature := ctx.GetHeader("X-FEDAPAY-SIGNATURE")
	if err := webhookService.HandleFedaPay(body, signature); err != nil {
		log.Printf("fedapay webhook: %v", err)
	}

	ctx.JSON(iris.Map{"received": true})
}

func MTNMoMoWebhook(ctx iris.Context) {
	mobileMoneyWebhook(ctx, "mtn_momo")
}

func MoovMoneyWebhook(ctx iris.Context) {
	mobileMoneyWebhook(ctx, "moov_money")
}

func mobileMoneyWebhook(ctx iris.Context, provider string) {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		log.Printf("%s webhook body read: %v", provider, err)
		ctx.JSON(iris.Map{"received": true})
		return
	}

	if err := webhookService.HandleMobileMoney(provider, body); err != nil {
		log.Printf("%s webhook: %v", provider, err)
	}

	ctx.JSON(iris.Map{"received": true})
}
