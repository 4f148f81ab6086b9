package dialogue

const hintExit = "(Puedes escribir \"adiós\" para salir)"

const (
	msgGoodbye     = "👋 ¡Has salido de la conversación! Si deseas volver, solo envía cualquier mensaje."
	msgUnavailable = "❌ Hubo un problema consultando tus datos. Intenta de nuevo en unos minutos."

	msgNotRegistered   = "🔐 No estás registrado en el sistema."
	msgAskRegistration = "¿Deseas registrarte? (sí / no)\nRecuerda: puedes escribir \"adiós\" en cualquier momento para salir."
	msgAskName         = "Perfecto, comencemos. ¿Cuál es tu nombre completo?\n" + hintExit
	msgLater           = "Entendido. Si deseas registrarte más tarde, escribe \"registrar\"."
	msgYesNo           = "Por favor responde \"sí\" o \"no\"."
	msgBadName         = "Por favor envía un nombre válido."
	msgAskEmail        = "Gracias. Ahora, por favor proporciona tu correo electrónico.\n" + hintExit
	msgBadEmail        = "❗ Correo inválido. Ejemplo válido: usuario@dominio.com\nIntenta de nuevo.\n" + hintExit
	msgConfirmEmail    = "📧 Recibí: *%s*\n¿Confirmas que este es tu correo? (sí / no)\n" + hintExit
	msgRetryEmail      = "De acuerdo. Envía nuevamente tu correo electrónico.\n" + hintExit
	msgWalletOption    = "¿Deseas ingresar la dirección de tu billetera ahora o registrarte en un servicio externo?\n\n" +
		"1. Ingresar mi dirección de billetera\n" +
		"2. Registrarme y obtener una billetera (te enviaré un link)\n\n" +
		"Responde con \"1\" o \"2\".\n" + hintExit
	msgOneOrTwo      = "Por favor responde con \"1\" o \"2\"."
	msgAskAddress    = "Por favor, escribe tu dirección de billetera (debe comenzar con \"0x\" y tener 42 caracteres).\n" + hintExit
	msgSignupLink    = "🔗 Para registrarte y crear tu billetera, visita este enlace:\n👉 %s\n\nCuando la tengas lista, por favor envía aquí tu dirección pública (la que empieza con \"0x...\")."
	msgBadAddress    = "❗ Dirección inválida. Debe comenzar con \"0x\" y tener 42 caracteres. Inténtalo de nuevo."
	msgConfirmAddr   = "📬 Recibí la dirección:\n%s\n¿Confirmas que es correcta? (sí / no)"
	msgRetryAddress  = "De acuerdo. Envía nuevamente tu dirección de billetera o elige una nueva opción.\n1. Ingresar dirección\n2. Registrarme con link"
	msgRegistered    = "🎉 ¡Registro completado, %s!"
	msgDuplicate     = "⚠️ No pude completar el registro: %s ya está registrado en otra cuenta. Escribe cualquier mensaje para empezar de nuevo."
	msgRegisterError = "❌ No pude guardar tu registro en este momento. Escribe cualquier mensaje para intentarlo de nuevo."

	msgWelcomeBack = "¡Hola de nuevo, %s!"
	msgMenu        = "¿Qué puedo hacer por ti hoy?\n" +
		"1. Revisar Saldo\n" +
		"2. Crear wallet comunitaria\n" +
		"3. Wallets comunitarias (ver)\n" +
		"Escribe \"adiós\" en cualquier momento para salir."
	msgMenuShort      = "1 Saldo • 2 Crear wallet comunitaria • 3 Ver comunitarias • \"adiós\" salir"
	msgBadOption      = "❗ Opción no válida. Responde con 1, 2 o 3. También puedes escribir \"adiós\" para salir."
	msgAlreadyMember  = "Ya estás registrado. Usa el menú con \"1\", \"2\" o \"3\"."
	msgNoAddress      = "⚠️ No encuentro tu billetera registrada.\nEscribe \"registrar\" para registrarte."
	msgBalanceError   = "❌ No pude obtener tu saldo en este momento. Intenta de nuevo más tarde."
	msgNeedAddress    = "⚠️ Necesitas tener una billetera personal registrada para ser el creador. Escribe \"registrar\" para completar tu registro."
	msgNoWallets      = "Aún no perteneces a una wallet comunitaria."
	msgBadSelection   = "Selecciona un número válido de la lista."
	msgLostSelection  = "No encontré la wallet seleccionada. Envía 3 para listar de nuevo."
	msgSubmenuOptions = "Elige a, b o c. O escribe \"menu\" para volver."
	msgBackToMenu     = "Regresando al menú principal:\n" + msgMenuShort

	msgCreateStart   = "🧩 Vamos a crear tu wallet comunitaria.\n\n1/3) Escribe el *nombre* de la wallet (ej: \"Coperacha Amigos\")."
	msgAskDesc       = "2/3) Escribe una *descripción* (breve). Si no deseas agregarla, escribe \"skip\"."
	msgBadDesc       = "Por favor envía una descripción o escribe \"skip\"."
	msgAskMembers    = "3/3) Pega las *direcciones de los miembros* (0x...) separadas por *coma*, *espacio* o *nueva línea*.\nEjemplo:\n0xabc..., 0xdef..., 0x123...\n\n(Puedes incluirte a ti mismo si quieres)"
	msgNoMembers     = "❗ No detecté direcciones válidas. Vuelve a enviarlas por favor."
	msgBadMembers    = "⚠️ Estas direcciones no son válidas:\n%s\n\nEnvía nuevamente la lista completa, corrigiendo las inválidas."
	msgCreateCancel  = "Creación cancelada. Volviendo al menú.\n" + msgMenuShort
	msgCreateYesNo   = "Responde \"sí\" para crear o \"no\" para cancelar."
	msgCreateFailed  = "❌ No se pudo crear la wallet comunitaria.\nDetalle: %s"
	msgDraftLost     = "No encontré el borrador de la wallet. Volviendo al menú.\n" + msgMenuShort
	msgUnsupported   = "⚠️ Esta función no está habilitada en el nodo. Contacta al admin para activarla."
	msgNoAportes     = "No hay aportes registrados aún."
	msgAportesError  = "❌ No pude obtener los aportes ahora."
	msgHistoryError  = "❌ No pude obtener el historial ahora."
	msgSectionFailed = "no disponible"
)

// ExpiredNotice is sent when a session expires for inactivity.
const ExpiredNotice = "⏳ Tu sesión ha expirado por inactividad. Si deseas volver a empezar, solo escribe cualquier mensaje."
