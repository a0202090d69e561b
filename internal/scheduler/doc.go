// Package scheduler доставляет отложенные вызовы, время которых наступило.
//
// Вызовы на будущее лежат в таблице deferred_calls. Relay.Tick забирает
// наступившие и публикует их в RabbitMQ, откуда их выполняет воркер.
// Тики запускает Run по расписанию robfig/cron.
//
// Использование:
//
//	relay := scheduler.New(scheduler.Config{
//	    Store:     store,
//	    Publisher: publisher,
//	    Logger:    logger,
//	})
//
//	scheduler.Run(ctx, "@every 1s", logger, func(ctx context.Context) {
//	    if err := relay.Tick(ctx); err != nil {
//	        logger.Error("relay tick failed", "error", err)
//	    }
//	})
//
// Leader Election:
//
// Relay не выбирает лидера сам. В cmd/backbeat-scheduler тик выполняется
// только экземпляром, который держит repo.LeaderLock.
package scheduler
