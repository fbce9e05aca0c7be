// Package blacket реализует клиент игры Blacket: REST-менеджеры сущностей
// и сокет событий чата.
//
// Сущности (User, Clan, Message, Room, Booster) живут в кэшах своих
// менеджеров и ссылаются друг на друга по id. Ссылки загружаются лениво:
// Fetch у менеджеров и Resolve у сущностей догружают всё достижимое
// (user -> clan -> members -> ...) ровно одним запросом на id, циклы не
// мешают.
//
// События приходят слушателям строго по порядку кадров. Сообщение в
// OnMessageCreate уже полностью загружено (комната и автор).
//
// Отправка в чат ждёт messages-ack с тем же customKey. Ожидание снимается
// отменой ctx, Options.AckTimeout или разрывом соединения.
//
// Пример:
//
//	c, err := blacket.New(blacket.Options{Token: token, Reconnect: true})
//	if err != nil { log.Fatal(err) }
//	c.OnMessageCreate(func(m *blacket.Message) {
//	    if m.Content() == "!ping" {
//	        go m.Reply(context.Background(), "pong", false)
//	    }
//	})
//	if err := c.Connect(ctx); err != nil { log.Fatal(err) }
//	defer c.Close()
//	_ = c.Wait(ctx)
package blacket
