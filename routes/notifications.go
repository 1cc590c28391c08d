package routes

import (
	"github.com/avent-visseho/lokahome-api/utils"

	"github.com/kataras/iris/v12"
)

func GetMyNotifications(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)
	unreadOnly := ctx.URLParamBoolDefault("unread", false)
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("perPage", 20)

	notifications, total, err := notificationService.ListUserNotifications(userID, unreadOnly, page, perPage)
	if err != nil {
		utils.HandleServiceError(ctx, err)
		return
	}

	utils.JSONPage(ctx, notifications, page, perPage, total)
}

func MarkNotificationRead(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	userID := ctx.Values().Get("userID").(uint)
	if err := notificationService.MarkRead(id, userID); err != nil {
		utils.HandleServiceError(ctx, err)
		return
	}

	ctx.JSON(iris.Map{"read": true})
}

func MarkAllNotificationsRead(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)
	if err := notificationService.MarkAllRead(userID); err != nil {
		utils.HandleServiceError(ctx, err)
		return
	}

	ctx.JSON(iris.Map{"read": true})
}
