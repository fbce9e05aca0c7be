// Package socket реализует WebSocket-соединение с Blacket (wss://blacket.org/worker/socket).
//
// Socket держит ровно одно живое соединение, разбирает входящие JSON-кадры
// {error, event, data, customKey}, отвечает на heartbeat сервера и
// переподключается с фиксированной паузой, если это разрешено конфигом.
//
// Состояния: Idle → Connecting → Open → Reconnecting → Connecting ... либо Closed
// (Close, отмена контекста, реконнект выключен или исчерпан лимит попыток).
//
// События (колбэки-поля, задаются до Connect):
//   - OnConnecting: перед каждым dial.
//   - OnOpen(ctx): после dial, до того как кадры пойдут слушателям;
//     ошибка из OnOpen считается неудачным подключением.
//   - OnRaw(frame): синхронно в читающей горутине, до постановки в очередь.
//     Годится только для быстрой работы (корреляция ack), не для слушателей.
//   - OnFrame(frame): в одной горутине-диспетчере, строго в порядке прихода.
//     Синтетические кадры "open"/"close" идут через ту же очередь.
//   - OnDisconnected(err), OnError(err).
//
// Надёжность:
//   - Запись сериализована (мьютекс + write-deadline).
//   - Битые кадры и кадры с error=true пишутся в Debug и отбрасываются.
//   - После первого heartbeat взводится дедлайн: нет следующего за
//     HeartbeatTimeout: соединение закрывается и идёт в ветку реконнекта.
//
// Пример:
//
//	s := socket.New(socket.Config{URL: socket.DefaultURL, Header: h, Reconnect: true})
//	s.OnFrame = func(f socket.Frame) { fmt.Println(f.Event) }
//	if err := s.Connect(ctx); err != nil { log.Fatal(err) }
//	defer s.Close()
//	_ = s.Emit(socket.EventMessageCreate, map[string]any{"room": 0, "content": "hi"})
package socket
